package supa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Profile is a row of the profiles table.
type Profile struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	AvatarURL *string    `json:"avatar_url"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate is a patch of the writable profile columns. Nil fields are
// left alone.
type ProfileUpdate struct {
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// QuestionRating is one answered feedback question.
type QuestionRating struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

// FeedbackRow is a row of the feedback table.
type FeedbackRow struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Message         string          `json:"message"`
	Rating          int             `json:"rating"`
	QuestionRatings json.RawMessage `json:"question_ratings"`
	UserID          *string         `json:"user_id,omitempty"`
}

func eq(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

// GetProfile fetches the profile row for userID.
func (c *Client) GetProfile(ctx context.Context, accessToken, userID string) (*Profile, error) {
	q := eq(userID)
	q.Set("select", "*")
	var p Profile
	err := c.doJSON(ctx, request{
		method:  http.MethodGet,
		path:    "rest/v1/profiles",
		query:   q,
		token:   accessToken,
		headers: map[string]string{"Accept": "application/vnd.pgrst.object+json"},
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile writes u to the profile row for userID and returns the
// updated row.
func (c *Client) UpdateProfile(ctx context.Context, accessToken, userID string, u ProfileUpdate) (*Profile, error) {
	body, err := jsonBody(u)
	if err != nil {
		return nil, err
	}
	var p Profile
	err = c.doJSON(ctx, request{
		method: http.MethodPatch,
		path:   "rest/v1/profiles",
		query:  eq(userID),
		token:  accessToken,
		body:   body,
		headers: map[string]string{
			"Accept": "application/vnd.pgrst.object+json",
			"Prefer": "return=representation",
		},
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertFeedback stores a feedback row. accessToken may be empty for
// anonymous submissions.
func (c *Client) InsertFeedback(ctx context.Context, accessToken string, row FeedbackRow) error {
	body, err := jsonBody([]FeedbackRow{row})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		method:  http.MethodPost,
		path:    "rest/v1/feedback",
		token:   accessToken,
		body:    body,
		headers: map[string]string{"Prefer": "return=minimal"},
	})
	return err
}
