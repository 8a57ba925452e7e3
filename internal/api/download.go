package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"rsc.io/qr"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/web"
)

const (
	downloadPagePath = "/download"
	downloadAPKPath  = "/download/apk"
	downloadQRPath   = "/download/qr.png"
)

// handleDownloadAPK sends signed-in visitors to the APK. Anonymous visitors
// go to the login page and come back to the download page afterwards.
func (s *Server) handleDownloadAPK(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	if id == nil {
		http.Redirect(w, r, loginURL(downloadPagePath), http.StatusFound)
		return
	}
	s.logger.Info("apk_download", "user_id", id.UserID, "email_hash", auth.HashEmail(id.Email))
	http.Redirect(w, r, s.cfg.APKURL, http.StatusFound)
}

// handleDownloadQR serves a QR code of the APK link. Scanning it opens the
// gated link, so phones sign in first as well.
func (s *Server) handleDownloadQR(w http.ResponseWriter, r *http.Request) {
	png, err := s.downloadQR()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}

func (s *Server) downloadQR() ([]byte, error) {
	s.qrOnce.Do(func() {
		code, err := qr.Encode(s.downloadLink(), qr.M)
		if err != nil {
			s.qrErr = err
			return
		}
		code.Scale = 6
		s.qrPNG = code.PNG()
	})
	return s.qrPNG, s.qrErr
}

func (s *Server) downloadLink() string {
	base, err := url.Parse(strings.TrimRight(s.cfg.SiteURL, "/"))
	if err != nil || base.Host == "" {
		return downloadAPKPath
	}
	return base.JoinPath(downloadAPKPath).String()
}

func (s *Server) handleDownloadPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, web.Download(s.page(r, "Download", downloadPagePath), web.DownloadView{
		Size:        humanize.IBytes(s.cfg.APKSize),
		DownloadURL: downloadAPKPath,
		QRURL:       downloadQRPath,
	}))
}
