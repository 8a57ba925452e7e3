// Package profile reads and edits the signed-in user's profile row and
// uploads avatars to the hosted storage bucket.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/supa"
)

const (
	// AvatarBucket is the public storage bucket holding avatars.
	AvatarBucket = "avatars"
	// MaxAvatarSize is the largest accepted avatar upload.
	MaxAvatarSize = 2 << 20
)

var (
	ErrEmptyAvatar    = errors.New("avatar file is empty")
	ErrNotImage       = errors.New("avatar must be an image")
	ErrAvatarTooLarge = fmt.Errorf("avatar must be at most %s", humanize.IBytes(MaxAvatarSize))
)

// Backend is the subset of the hosted backend used for profiles.
type Backend interface {
	GetProfile(ctx context.Context, accessToken, userID string) (*supa.Profile, error)
	UpdateProfile(ctx context.Context, accessToken, userID string, u supa.ProfileUpdate) (*supa.Profile, error)
	EnsureBucket(ctx context.Context, accessToken string, b supa.Bucket) error
	Upload(ctx context.Context, accessToken, bucket, name, contentType string, data []byte) error
	PublicURL(bucket, name string) string
}

// Notifier is told when a user's visible details change.
type Notifier interface {
	NotifyUserUpdated(visitor string, id *auth.Identity)
}

// Update is the editable name form.
type Update struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Avatar is an uploaded image.
type Avatar struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service implements the profile operations.
type Service struct {
	backend Backend
	notify  Notifier
	now     func() time.Time
	random  func(int) string
	logger  *slog.Logger
}

// NewService returns a profile Service. notify may be nil.
func NewService(backend Backend, notify Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		notify:  notify,
		now:     time.Now,
		random:  supa.RandomString,
		logger:  logger.With("component", "profile"),
	}
}

// Get loads the profile of id.
func (s *Service) Get(ctx context.Context, id *auth.Identity) (*supa.Profile, error) {
	return s.backend.GetProfile(ctx, id.AccessToken(), id.UserID)
}

// Update saves the names and returns the stored row.
func (s *Service) Update(ctx context.Context, visitor string, id *auth.Identity, u Update) (*supa.Profile, error) {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	now := s.now().UTC()

	p, err := s.backend.UpdateProfile(ctx, id.AccessToken(), id.UserID, supa.ProfileUpdate{
		FirstName: &first,
		LastName:  &last,
		UpdatedAt: &now,
	})
	if err != nil {
		s.logger.Warn("profile_update_failed", "user_id", id.UserID, "error", supa.Message(err))
		return nil, err
	}

	updated := *id
	updated.FirstName = p.FirstName
	updated.LastName = p.LastName
	s.notifyUpdated(visitor, &updated)
	s.logger.Info("profile_updated", "user_id", id.UserID)
	return p, nil
}

// UploadAvatar stores the image and points the profile at its public URL.
func (s *Service) UploadAvatar(ctx context.Context, visitor string, id *auth.Identity, a Avatar) (*supa.Profile, error) {
	contentType, err := CheckAvatar(a)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-%s.%s", id.UserID, s.random(10), avatarExt(a.Filename, contentType))

	token := id.AccessToken()
	err = s.backend.EnsureBucket(ctx, token, supa.Bucket{
		ID:            AvatarBucket,
		Public:        true,
		FileSizeLimit: MaxAvatarSize,
	})
	if err != nil {
		return nil, fmt.Errorf("avatar bucket: %w", err)
	}
	if err := s.backend.Upload(ctx, token, AvatarBucket, name, contentType, a.Data); err != nil {
		s.logger.Warn("avatar_upload_failed", "user_id", id.UserID, "error", supa.Message(err))
		return nil, err
	}

	url := s.backend.PublicURL(AvatarBucket, name)
	p, err := s.backend.UpdateProfile(ctx, token, id.UserID, supa.ProfileUpdate{AvatarURL: &url})
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(visitor, id)
	s.logger.Info("avatar_uploaded", "user_id", id.UserID, "size", humanize.IBytes(uint64(len(a.Data))))
	return p, nil
}

// CheckAvatar validates size and type and returns the content type to
// store. The type is sniffed from the bytes; the declared type only has to
// agree that it is an image.
func CheckAvatar(a Avatar) (string, error) {
	if len(a.Data) == 0 {
		return "", ErrEmptyAvatar
	}
	if len(a.Data) > MaxAvatarSize {
		return "", ErrAvatarTooLarge
	}
	if a.ContentType != "" && !strings.HasPrefix(a.ContentType, "image/") {
		return "", ErrNotImage
	}
	sniffed := http.DetectContentType(a.Data)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", ErrNotImage
	}
	return sniffed, nil
}

func avatarExt(filename, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	sub := strings.TrimPrefix(contentType, "image/")
	if i := strings.IndexAny(sub, "+;"); i >= 0 {
		sub = sub[:i]
	}
	if sub == "jpeg" {
		return "jpg"
	}
	return sub
}

func (s *Service) notifyUpdated(visitor string, id *auth.Identity) {
	if s.notify != nil {
		s.notify.NotifyUserUpdated(visitor, id)
	}
}
