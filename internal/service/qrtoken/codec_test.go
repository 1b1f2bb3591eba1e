package qrtoken

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seu-repo/parkflow/internal/domain"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret")
	require.NoError(t, err)
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	payloads := []Payload{
		NewBookingPayload("booking-1", "slot-1", "user-1", issued),
		NewSubscriberPayload("user-2", domain.UserRoleUser, issued),
	}
	for _, p := range payloads {
		token, err := c.Sign(p)
		require.NoError(t, err)

		got, err := c.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, p, *got)
	}
}

func TestCodec_CreateRendersImage(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Create(NewBookingPayload("booking-1", "slot-1", "user-1", time.Now()))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tok.Image, "data:image/png;base64,"))
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(tok.Image, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	_, err = c.Verify(tok.Value)
	assert.NoError(t, err)
}

func TestCodec_AnySignatureFlipFails(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Sign(NewBookingPayload("booking-1", "slot-1", "user-1", time.Now()))
	require.NoError(t, err)

	dot := strings.Index(token, delimiter)
	for i := dot + 1; i < len(token); i++ {
		flipped := []byte(token)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		_, err := c.Verify(string(flipped))
		require.ErrorIs(t, err, domain.ErrInvalidSignature, "position %d", i)
	}
}

func TestCodec_TamperedPayloadFails(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Sign(NewBookingPayload("booking-1", "slot-1", "user-1", time.Now()))
	require.NoError(t, err)

	forged, err := c.Sign(NewBookingPayload("booking-2", "slot-1", "user-1", time.Now()))
	require.NoError(t, err)

	mixed := strings.Split(forged, delimiter)[0] + delimiter + strings.Split(token, delimiter)[1]
	_, err = c.Verify(mixed)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestCodec_MalformedTokens(t *testing.T) {
	c := newTestCodec(t)
	for _, token := range []string{"", "nodelimiter", "a.b.c", ".abc", "abc."} {
		_, err := c.Verify(token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken, "token %q", token)
	}
}

func TestCodec_DifferentSecretsDisagree(t *testing.T) {
	a := newTestCodec(t)
	b, err := NewCodec("another-secret")
	require.NoError(t, err)

	token, err := a.Sign(NewSubscriberPayload("user-1", domain.UserRoleUser, time.Now()))
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestCodec_RejectsIncompletePayloads(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Sign(Payload{Kind: KindBooking, UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = c.Sign(Payload{Kind: "other", UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = NewCodec("")
	assert.Error(t, err)
}
