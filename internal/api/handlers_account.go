package api

import (
	"errors"
	"io"
	"net/http"

	"golang.org/x/text/language"

	"github.com/MJE43/senipy/internal/admin"
	"github.com/MJE43/senipy/internal/feedback"
	"github.com/MJE43/senipy/internal/profile"
)

const avatarField = "avatar"

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profile.Get(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profile.Update
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	p, err := s.profile.Update(r.Context(), VisitorFrom(r.Context()), IdentityFrom(r.Context()), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		MessageResponse
		Profile any `json:"profile"`
	}{MessageResponse{Title: "Profile updated", Message: "Your profile has been updated successfully"}, p})
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, profile.MaxAvatarSize+64<<10)
	file, header, err := r.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorHandler.HandleError(w, r, profile.ErrAvatarTooLarge)
			return
		}
		s.errorHandler.HandleValidationError(w, r, avatarField, "an image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, profile.MaxAvatarSize+1))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	p, err := s.profile.UploadAvatar(r.Context(), VisitorFrom(r.Context()), IdentityFrom(r.Context()), profile.Avatar{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		MessageResponse
		Profile any `json:"profile"`
	}{MessageResponse{Title: "Avatar uploaded", Message: "Your avatar has been updated successfully"}, p})
}

func (s *Server) handleFeedbackQuestions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Questions []feedback.Question `json:"questions"`
	}{feedback.Questions})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var sub feedback.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if err := s.feedback.Submit(r.Context(), sub, IdentityFrom(r.Context())); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, MessageResponse{
		Title:   "Thank you for your feedback!",
		Message: "We appreciate your input and will use it to improve our service.",
	})
}

var dashboardLanguages = language.NewMatcher([]language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
})

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	d := admin.Build(IdentityFrom(r.Context()), s.clock.Now(), requestLanguage(r))
	s.writeJSON(w, http.StatusOK, d)
}

// requestLanguage picks the dashboard locale from Accept-Language.
func requestLanguage(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	tag, _, _ := dashboardLanguages.Match(tags...)
	return tag
}
