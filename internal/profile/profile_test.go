package profile

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/supa"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeBackend struct {
	profile   supa.Profile
	updates   []supa.ProfileUpdate
	buckets   []supa.Bucket
	uploads   []string
	types     []string
	uploadErr error
}

func (f *fakeBackend) GetProfile(_ context.Context, _, userID string) (*supa.Profile, error) {
	p := f.profile
	p.ID = userID
	return &p, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, _, userID string, u supa.ProfileUpdate) (*supa.Profile, error) {
	f.updates = append(f.updates, u)
	if u.FirstName != nil {
		f.profile.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		f.profile.LastName = *u.LastName
	}
	if u.AvatarURL != nil {
		f.profile.AvatarURL = u.AvatarURL
	}
	p := f.profile
	p.ID = userID
	return &p, nil
}

func (f *fakeBackend) EnsureBucket(_ context.Context, _ string, b supa.Bucket) error {
	f.buckets = append(f.buckets, b)
	return nil
}

func (f *fakeBackend) Upload(_ context.Context, _, bucket, name, contentType string, _ []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, bucket+"/"+name)
	f.types = append(f.types, contentType)
	return nil
}

func (f *fakeBackend) PublicURL(bucket, name string) string {
	return "https://backend.test/storage/v1/object/public/" + bucket + "/" + name
}

type notifications struct {
	visitors []string
	ids      []auth.Identity
}

func (n *notifications) NotifyUserUpdated(visitor string, id *auth.Identity) {
	n.visitors = append(n.visitors, visitor)
	n.ids = append(n.ids, *id)
}

func newService(b *fakeBackend, n Notifier) *Service {
	s := NewService(b, n, nil)
	s.random = func(int) string { return "abc123xyz0" }
	return s
}

func TestUpdateTrimsAndNotifies(t *testing.T) {
	b := &fakeBackend{}
	n := &notifications{}
	s := newService(b, n)

	p, err := s.Update(context.Background(), "visitor-1", &auth.Identity{UserID: "u1"}, Update{FirstName: " John ", LastName: "Doe"})
	require.NoError(t, err)
	assert.Equal(t, "John", p.FirstName)
	require.Len(t, b.updates, 1)
	assert.NotNil(t, b.updates[0].UpdatedAt)
	assert.Nil(t, b.updates[0].AvatarURL)

	require.Len(t, n.ids, 1)
	assert.Equal(t, "visitor-1", n.visitors[0])
	assert.Equal(t, "John", n.ids[0].FirstName)
}

func TestUploadAvatar(t *testing.T) {
	b := &fakeBackend{}
	n := &notifications{}
	s := newService(b, n)

	p, err := s.UploadAvatar(context.Background(), "visitor-1", &auth.Identity{UserID: "u1"}, Avatar{
		Filename:    "Me.PNG",
		ContentType: "image/png",
		Data:        pngHeader,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"avatars/u1-abc123xyz0.png"}, b.uploads)
	assert.Equal(t, "image/png", b.types[0])
	require.Len(t, b.buckets, 1)
	assert.True(t, b.buckets[0].Public)
	assert.EqualValues(t, MaxAvatarSize, b.buckets[0].FileSizeLimit)

	require.NotNil(t, p.AvatarURL)
	assert.Equal(t, "https://backend.test/storage/v1/object/public/avatars/u1-abc123xyz0.png", *p.AvatarURL)
	assert.Len(t, n.ids, 1)
}

func TestUploadAvatarFailureLeavesProfile(t *testing.T) {
	b := &fakeBackend{uploadErr: &supa.APIError{StatusCode: 500, Message: "boom"}}
	s := newService(b, nil)

	_, err := s.UploadAvatar(context.Background(), "v", &auth.Identity{UserID: "u1"}, Avatar{Filename: "a.png", Data: pngHeader})
	var api *supa.APIError
	require.True(t, errors.As(err, &api))
	assert.Empty(t, b.updates)
}

func TestCheckAvatar(t *testing.T) {
	tests := []struct {
		name string
		a    Avatar
		want error
	}{
		{"png", Avatar{ContentType: "image/png", Data: pngHeader}, nil},
		{"no declared type", Avatar{Data: pngHeader}, nil},
		{"empty", Avatar{ContentType: "image/png"}, ErrEmptyAvatar},
		{"declared text", Avatar{ContentType: "text/plain", Data: pngHeader}, ErrNotImage},
		{"sniffed text", Avatar{ContentType: "image/png", Data: []byte("hello world")}, ErrNotImage},
		{"too large", Avatar{ContentType: "image/png", Data: append(pngHeader, bytes.Repeat([]byte{0}, MaxAvatarSize)...)}, ErrAvatarTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CheckAvatar(tt.a)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAvatarExt(t *testing.T) {
	assert.Equal(t, "jpg", avatarExt("", "image/jpeg"))
	assert.Equal(t, "gif", avatarExt("x.GIF", "image/gif"))
	assert.Equal(t, "webp", avatarExt("noext", "image/webp"))
}
