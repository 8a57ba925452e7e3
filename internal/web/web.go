// Package web renders the HTML pages of the site as templ components. The
// *_templ.go files are generated from the .templ sources.
package web

//go:generate go run github.com/a-h/templ/cmd/templ generate

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/scores"
)

// SiteName is shown in titles and the navigation bar.
const SiteName = "Robo Companion"

// Page carries what every page needs for its chrome.
type Page struct {
	Title  string
	Active string
	User   *auth.Identity
}

// PageTitle appends the site name unless the title already carries it.
func PageTitle(title string) string {
	if title == "" || title == SiteName {
		return SiteName
	}
	return title + " | " + SiteName
}

var navLinks = []struct{ Href, Label string }{
	{"/", "Home"},
	{"/games", "Games"},
	{"/feedback", "Feedback"},
	{"/download", "Download"},
}

// Feature is a landing page feature card.
type Feature struct {
	Title       string
	Description string
}

var Features = []Feature{
	{"Voice Integration", "Control your device with simple voice commands, making navigation effortless even for those with limited mobility."},
	{"Interactive Games", "Enjoy engaging games designed to stimulate mental activity, improve cognitive function, and provide entertainment."},
	{"Voice Shopping", "Shop online using voice commands to easily browse and purchase items without the need for complex navigation."},
	{"Wallet Money", "Securely manage finances with an intuitive digital wallet designed specifically for ease of use and safety."},
	{"Guardian Connect", "Stay connected with family members and caregivers through simplified communication features."},
}

// InstallSteps are shown on the download page.
var InstallSteps = []string{
	"Click the download button below.",
	"Open the APK file on your Android device.",
	"Follow the on-screen installation instructions.",
	"Allow any required permissions when prompted.",
	"Launch Robo Companion and start exploring!",
}

// GamesView is the data behind the games page.
type GamesView struct {
	Specs   []games.GameSpec
	Summary scores.Summary
}

// DownloadView is the data behind the download page.
type DownloadView struct {
	Size        string
	DownloadURL string
	QRURL       string
}

// Login is the sign-in page. next is where to go after signing in; anything
// but a local path falls back to the home page.
func Login(p Page, next string) templ.Component {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	return loginPage(p, next)
}

func displayName(id *auth.Identity) string {
	if id.FirstName != "" {
		return id.FirstName
	}
	return id.Email
}

func contactName(id *auth.Identity) string {
	if id == nil {
		return ""
	}
	return strings.TrimSpace(id.FirstName + " " + id.LastName)
}

func contactEmail(id *auth.Identity) string {
	if id == nil {
		return ""
	}
	return id.Email
}

func oauthURL(provider, next string) templ.SafeURL {
	return templ.SafeURL("/api/v1/auth/oauth/" + provider + "?next=" + url.QueryEscape(next))
}

func providerLabel(provider string) string {
	if provider == "" {
		return ""
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}

// scoredSpecs are the games listed on the score card.
func scoredSpecs() []games.GameSpec {
	var out []games.GameSpec
	for _, spec := range games.ListSpecs() {
		if scores.Averaged(spec.ID) {
			out = append(out, spec)
		}
	}
	return out
}

func actionLabel(action string) string {
	return strings.ReplaceAll(action, "_", " ")
}

func ratingField(question int) string {
	return "ratings." + strconv.Itoa(question)
}

// Initials are the avatar fallback.
func Initials(first, last string) string {
	var b strings.Builder
	for _, s := range []string{first, last} {
		if r := []rune(strings.TrimSpace(s)); len(r) > 0 {
			b.WriteRune(r[0])
		}
	}
	return strings.ToUpper(b.String())
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2937;background:#f8fafc}
nav{display:flex;gap:1rem;align-items:center;padding:1rem 2rem;background:#fff;box-shadow:0 1px 3px #0001}
nav ul{display:flex;gap:1rem;list-style:none;margin:0;padding:0;flex:1}
nav a{color:inherit;text-decoration:none}.active{font-weight:700}.brand{font-weight:800;color:#2563eb}
main{max-width:960px;margin:2rem auto;padding:0 1rem}.card{background:#fff;border-radius:1rem;padding:1.5rem;margin:1rem 0;box-shadow:0 2px 8px #0001}
.grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(260px,1fr));gap:1rem}
.btn-primary,button{background:#2563eb;color:#fff;border:0;border-radius:999px;padding:.5rem 1.25rem;cursor:pointer}
.btn-secondary{border:2px solid #2563eb;border-radius:999px;padding:.4rem 1.1rem;color:#2563eb}
.inline{display:inline}.notice{min-height:1.2em;color:#b91c1c}.notice.ok{color:#15803d}
label{display:block;margin:.5rem 0}input,textarea{width:100%;padding:.4rem;box-sizing:border-box}
table{width:100%;border-collapse:collapse}td,th{text-align:left;padding:.4rem;border-bottom:1px solid #e5e7eb}
pre{background:#0f172a;color:#e2e8f0;padding:1rem;border-radius:.5rem;overflow:auto}
footer{text-align:center;color:#6b7280;padding:2rem}`

// clientScript posts forms marked with data-api as JSON (or multipart) and
// drives the game cards through the game session API.
const clientScript = `
function formBody(f){const b={};for(const el of f.elements){if(!el.name)continue;
if(el.name.startsWith('ratings.')){if(el.checked){b.ratings=b.ratings||{};b.ratings[el.name.slice(8)]=Number(el.value)}continue}
if(el.type==='checkbox'){b[el.name]=el.checked;continue}if(el.type==='radio'&&!el.checked)continue;b[el.name]=el.value}return b}
async function call(method,url,body,multipart){const opts={method,headers:{},credentials:'same-origin'};
if(multipart){opts.body=body}else if(body!==undefined){opts.headers['Content-Type']='application/json';opts.body=JSON.stringify(body)}
const r=await fetch(url,opts);let data={};try{data=await r.json()}catch(e){}return{ok:r.ok,data}}
document.addEventListener('submit',async e=>{const f=e.target;if(!f.dataset.api)return;e.preventDefault();
const n=f.querySelector('.notice');const multipart=f.enctype==='multipart/form-data';
const res=await call(f.dataset.method||'POST',f.dataset.api,multipart?new FormData(f):formBody(f),multipart);
const d=res.data||{};const ctx=d.context||{};
if(n){n.className=res.ok?'notice ok':'notice';n.textContent=res.ok?(d.message||'Saved'):((ctx.title?ctx.title+': ':'')+(d.message||'Request failed'))}
if(res.ok&&f.dataset.next&&!d.needs_confirmation)location.href=f.dataset.next;
if(res.ok&&f.dataset.reveal){const t=document.getElementById(f.dataset.reveal);if(t)t.hidden=false}});
document.querySelectorAll('[data-game]').forEach(card=>{const out=card.querySelector('pre');let id=null;
const show=s=>{out.textContent=JSON.stringify(s.state,null,2)};
card.querySelector('.start').addEventListener('click',async()=>{if(id)await call('DELETE','/api/v1/games/sessions/'+id);
const r=await call('POST','/api/v1/games/'+card.dataset.game+'/sessions');if(r.ok){id=r.data.id;show(r.data)}});
card.querySelectorAll('[data-action]').forEach(btn=>btn.addEventListener('click',async()=>{if(!id)return;
const a={type:btn.dataset.action};const v=card.querySelector('input[name=arg]').value;
if(a.type==='reveal')a.card=Number(v);if(a.type==='move')a.position=Number(v);if(a.type==='guess')a.guess=v;
const r=await call('POST','/api/v1/games/sessions/'+id+'/actions',a);if(r.ok)show(r.data)}));
setInterval(async()=>{if(!id)return;const r=await call('GET','/api/v1/games/sessions/'+id);if(r.ok)show(r.data)},1000)});
`
