// Package feedback validates and submits the site's feedback form.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/supa"
)

// Question is one of the fixed rating prompts.
type Question struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Questions are asked on every submission, in this order.
var Questions = []Question{
	{ID: 1, Text: "How would you rate the overall usability of the SENIPY app?"},
	{ID: 2, Text: "How effective do you find the voice-activated features in the Gen_0 APK?"},
	{ID: 3, Text: "How would you rate the engagement level of the games and music in SENIPY?"},
	{ID: 4, Text: "How satisfied are you with the health insights and emergency alerts feature?"},
	{ID: 5, Text: "How would you rate the overall idea of SENIPY as a virtual assistant for elderly care?"},
}

const (
	MinRating = 1
	MaxRating = 5
)

// Submission is the posted form. Ratings maps question id to 1..5.
type Submission struct {
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Message string      `json:"message"`
	Ratings map[int]int `json:"ratings"`
}

// ValidationError is a rejected submission; nothing was sent.
type ValidationError struct {
	Title   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feedback: %s: %s", e.Title, e.Message)
}

// Backend stores feedback rows.
type Backend interface {
	InsertFeedback(ctx context.Context, accessToken string, row supa.FeedbackRow) error
}

// Service submits feedback.
type Service struct {
	backend Backend
	logger  *slog.Logger
}

// NewService returns a Service writing to backend.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger.With("component", "feedback")}
}

// Validate checks the form without sending anything.
func Validate(sub Submission) error {
	if strings.TrimSpace(sub.Name) == "" {
		return &ValidationError{Title: "Name Required", Message: "Please enter your name"}
	}
	if !strings.Contains(sub.Email, "@") {
		return &ValidationError{Title: "Email Required", Message: "Please enter a valid email address"}
	}
	for _, q := range Questions {
		r, ok := sub.Ratings[q.ID]
		if !ok || r < MinRating || r > MaxRating {
			return &ValidationError{
				Title:   "Ratings Required",
				Message: "Please provide a rating for all questions before submitting",
			}
		}
	}
	return nil
}

// Rating is the mean of the question ratings rounded half-up.
func Rating(ratings map[int]int) int {
	if len(Questions) == 0 {
		return 0
	}
	sum := 0
	for _, q := range Questions {
		sum += ratings[q.ID]
	}
	avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(Questions)))).Round(0)
	return int(avg.IntPart())
}

// BuildRow turns a valid submission into a feedback row. user is nil for
// anonymous visitors.
func BuildRow(sub Submission, user *auth.Identity) (supa.FeedbackRow, error) {
	answers := make([]supa.QuestionRating, 0, len(Questions))
	for _, q := range Questions {
		answers = append(answers, supa.QuestionRating{ID: q.ID, Text: q.Text, Rating: sub.Ratings[q.ID]})
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return supa.FeedbackRow{}, err
	}

	row := supa.FeedbackRow{
		Name:            strings.TrimSpace(sub.Name),
		Email:           strings.TrimSpace(sub.Email),
		Message:         strings.TrimSpace(sub.Message),
		Rating:          Rating(sub.Ratings),
		QuestionRatings: raw,
	}
	if user != nil {
		id := user.UserID
		row.UserID = &id
	}
	return row, nil
}

// Submit validates sub and inserts it. Backend failures are returned as-is
// and never retried.
func (s *Service) Submit(ctx context.Context, sub Submission, user *auth.Identity) error {
	if err := Validate(sub); err != nil {
		return err
	}
	row, err := BuildRow(sub, user)
	if err != nil {
		return err
	}

	token := ""
	if user != nil {
		token = user.AccessToken()
	}
	if err := s.backend.InsertFeedback(ctx, token, row); err != nil {
		s.logger.Warn("feedback_insert_failed", "error", supa.Message(err))
		return err
	}
	s.logger.Info("feedback_submitted", "rating", row.Rating, "signed_in", user != nil)
	return nil
}
