// Package qrtoken signs and verifies the compact tokens printed as QR codes
// on booking confirmations and subscriber passes.
package qrtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/hkdf"

	"github.com/seu-repo/parkflow/internal/domain"
)

const (
	delimiter = "."
	keyInfo   = "parkflow qr token v1"
	imageSize = 600
)

// Kind discriminates the payload variants
type Kind string

const (
	KindBooking    Kind = "booking"
	KindSubscriber Kind = "subscriber"
)

// Payload is the signed content of a token. Booking tokens carry BookingID
// and SlotID; subscriber tokens carry Role.
type Payload struct {
	Kind      Kind            `json:"kind"`
	BookingID string          `json:"bookingId,omitempty"`
	SlotID    string          `json:"slotId,omitempty"`
	UserID    string          `json:"userId"`
	Role      domain.UserRole `json:"role,omitempty"`
	IssuedAt  int64           `json:"iat"`
}

// NewBookingPayload builds a booking-scoped payload
func NewBookingPayload(bookingID, slotID, userID string, at time.Time) Payload {
	return Payload{Kind: KindBooking, BookingID: bookingID, SlotID: slotID, UserID: userID, IssuedAt: at.Unix()}
}

// NewSubscriberPayload builds a subscriber-scoped payload
func NewSubscriberPayload(userID string, role domain.UserRole, at time.Time) Payload {
	return Payload{Kind: KindSubscriber, UserID: userID, Role: role, IssuedAt: at.Unix()}
}

func (p Payload) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: missing user id", domain.ErrInvalidToken)
	}
	switch p.Kind {
	case KindBooking:
		if p.BookingID == "" {
			return fmt.Errorf("%w: booking payload without booking id", domain.ErrInvalidToken)
		}
	case KindSubscriber:
	default:
		return fmt.Errorf("%w: unknown payload kind %q", domain.ErrInvalidToken, p.Kind)
	}
	return nil
}

// Token is a signed token and its scannable rendering
type Token struct {
	Value string `json:"token"`
	Image string `json:"image"` // PNG data URL
}

// Codec creates and verifies tokens with a server-held key
type Codec struct {
	key []byte
}

// NewCodec derives the MAC key from secret
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("qr secret is required")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive qr key: %w", err)
	}
	return &Codec{key: key}, nil
}

// Create signs payload and renders it as a QR image
func (c *Codec) Create(p Payload) (*Token, error) {
	value, err := c.Sign(p)
	if err != nil {
		return nil, err
	}
	image, err := Render(value)
	if err != nil {
		return nil, err
	}
	return &Token{Value: value, Image: image}, nil
}

// Sign returns encoding + "." + hex(HMAC-SHA256(encoding))
func (c *Codec) Sign(p Payload) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + delimiter + c.mac(encoded), nil
}

// Verify checks the token's MAC and returns its payload. Freshness is left
// to the caller.
func (c *Codec) Verify(token string) (*Payload, error) {
	parts := strings.Split(strings.TrimSpace(token), delimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected 2 parts", domain.ErrInvalidToken)
	}

	if !hmac.Equal([]byte(c.mac(parts[0])), []byte(parts[1])) {
		return nil, domain.ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", domain.ErrInvalidToken)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: bad payload", domain.ErrInvalidToken)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Codec) mac(encoded string) string {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(encoded))
	return hex.EncodeToString(h.Sum(nil))
}

// Render encodes a token as a PNG data URL
func Render(value string) (string, error) {
	png, err := qrcode.Encode(value, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("failed to render qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
