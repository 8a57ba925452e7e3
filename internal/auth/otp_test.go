package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phoneRequest(code string) VerifyOTPRequest {
	return VerifyOTPRequest{
		Phone:       "+1 (555) 010-0199",
		Code:        code,
		FirstName:   "Jane",
		LastName:    "Smith",
		Password:    "pw",
		AcceptTerms: true,
	}
}

func TestPhoneEmail(t *testing.T) {
	assert.Equal(t, "phone_15550100199@senipy.com", PhoneEmail("+1 (555) 010-0199"))
}

func TestSendOTPCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SendOTP(ctx, "12")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	sent, err := h.svc.SendOTP(ctx, "+1 (555) 010-0199")
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(time.Minute), sent.ResendAfter)

	_, err = h.svc.SendOTP(ctx, "+1 555 010 0199")
	assert.ErrorIs(t, err, ErrOTPCooldown)

	h.clock.Advance(time.Minute)
	_, err = h.svc.SendOTP(ctx, "+1 555 010 0199")
	assert.NoError(t, err)
}

func TestVerifyOTPCompletesSignup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.VerifyOTP(ctx, "v", phoneRequest("123456"))
	assert.ErrorIs(t, err, ErrNoPendingOTP)

	_, err = h.svc.SendOTP(ctx, "+1 (555) 010-0199")
	require.NoError(t, err)

	_, err = h.svc.VerifyOTP(ctx, "v", phoneRequest("654321"))
	assert.ErrorIs(t, err, ErrInvalidOTP)

	res, err := h.svc.VerifyOTP(ctx, "v", phoneRequest("123456"))
	require.NoError(t, err)
	require.NotNil(t, res.SignedIn)
	require.Len(t, h.backend.signUps, 1)
	assert.Equal(t, "phone_15550100199@senipy.com", h.backend.signUps[0].Email)
	assert.Equal(t, "Jane", h.backend.signUps[0].FirstName)

	// The challenge is consumed.
	_, err = h.svc.VerifyOTP(ctx, "v", phoneRequest("123456"))
	assert.ErrorIs(t, err, ErrNoPendingOTP)
}

func TestVerifyOTPAttemptLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SendOTP(ctx, "5550100199")
	require.NoError(t, err)

	for i := 1; i < 5; i++ {
		_, err := h.svc.VerifyOTP(ctx, "v", VerifyOTPRequest{Phone: "5550100199", Code: "000000", FirstName: "a", LastName: "b", Password: "c", AcceptTerms: true})
		assert.ErrorIs(t, err, ErrInvalidOTP, "attempt %d", i)
	}
	_, err = h.svc.VerifyOTP(ctx, "v", VerifyOTPRequest{Phone: "5550100199", Code: "000000", FirstName: "a", LastName: "b", Password: "c", AcceptTerms: true})
	assert.ErrorIs(t, err, ErrOTPAttempts)

	// Even the right code is refused now.
	_, err = h.svc.VerifyOTP(ctx, "v", VerifyOTPRequest{Phone: "5550100199", Code: "123456", FirstName: "a", LastName: "b", Password: "c", AcceptTerms: true})
	assert.ErrorIs(t, err, ErrOTPAttempts)
	assert.Empty(t, h.backend.signUps)
}

func TestVerifyOTPExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SendOTP(ctx, "5550100199")
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	_, err = h.svc.VerifyOTP(ctx, "v", VerifyOTPRequest{Phone: "5550100199", Code: "123456", FirstName: "a", LastName: "b", Password: "c", AcceptTerms: true})
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestVerifyOTPValidatesBeforeLookup(t *testing.T) {
	h := newHarness(t)
	req := phoneRequest("123")
	_, err := h.svc.VerifyOTP(context.Background(), "v", req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "code", verr.Field)
}
