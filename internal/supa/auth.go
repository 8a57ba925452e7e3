package supa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is the GoTrue user object.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  struct {
		Provider string `json:"provider,omitempty"`
	} `json:"app_metadata"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FirstName returns user_metadata.first_name when present.
func (u *User) FirstName() string { return u.metaString("first_name") }

// LastName returns user_metadata.last_name when present.
func (u *User) LastName() string { return u.metaString("last_name") }

func (u *User) metaString(key string) string {
	if v, ok := u.UserMetadata[key].(string); ok {
		return v
	}
	return ""
}

// Session is a token grant.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         User   `json:"user"`
}

// Expiry returns when the access token expires, computed from ExpiresAt or
// ExpiresIn relative to now.
func (s *Session) Expiry(now time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0).UTC()
	}
	if s.ExpiresIn > 0 {
		return now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return now.Add(time.Hour)
}

// SignUpParams is the payload of an email signup.
type SignUpParams struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	RedirectTo string
}

// SignUpResult holds the created user and, when email confirmation is
// disabled on the project, an immediate session.
type SignUpResult struct {
	User    User
	Session *Session
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var s Session
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   body,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body, err := jsonBody(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	var s Session
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   body,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SignUp registers a new email user.
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*SignUpResult, error) {
	body, err := jsonBody(map[string]any{
		"email":    p.Email,
		"password": p.Password,
		"data": map[string]string{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
		},
	})
	if err != nil {
		return nil, err
	}

	var query url.Values
	if p.RedirectTo != "" {
		query = url.Values{"redirect_to": {p.RedirectTo}}
	}

	// The response is a bare user when confirmation is required and a
	// session otherwise.
	var raw struct {
		Session
		ID        string         `json:"id"`
		Email     string         `json:"email"`
		Metadata  map[string]any `json:"user_metadata"`
		CreatedAt time.Time      `json:"created_at"`
	}
	err = c.doJSON(ctx, request{method: http.MethodPost, path: "auth/v1/signup", query: query, body: body}, &raw)
	if err != nil {
		return nil, err
	}

	if raw.AccessToken != "" {
		s := raw.Session
		return &SignUpResult{User: s.User, Session: &s}, nil
	}
	return &SignUpResult{User: User{
		ID:           raw.ID,
		Email:        raw.Email,
		UserMetadata: raw.Metadata,
		CreatedAt:    raw.CreatedAt,
	}}, nil
}

// AuthorizeURL is where the browser is sent to start an OAuth flow with a
// PKCE S256 challenge.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	return c.endpoint("auth/v1/authorize", url.Values{
		"provider":              {provider},
		"redirect_to":           {redirectTo},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"s256"},
	})
}

// ExchangeCode completes a PKCE flow.
func (c *Client) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	if authCode == "" {
		return nil, fmt.Errorf("supa: auth code is required")
	}
	body, err := jsonBody(map[string]string{"auth_code": authCode, "code_verifier": codeVerifier})
	if err != nil {
		return nil, err
	}
	var s Session
	err = c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "auth/v1/token",
		query:  url.Values{"grant_type": {"pkce"}},
		body:   body,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SignOut revokes the user's refresh tokens.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: "auth/v1/logout", token: accessToken})
	return err
}

// GetUser returns the user the access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "auth/v1/user", token: accessToken}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
