// Package signature authenticates gateway payloads with per-channel HMAC keys.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// ErrNoSecret is returned when the channel has no signing key configured.
var ErrNoSecret = errors.New("no secret configured for channel")

// Secrets holds one key per signed channel. The two keys are distinct.
type Secrets struct {
	Browser string
	Webhook string
}

// Verifier checks hex HMAC-SHA256 signatures of raw gateway payloads.
type Verifier struct {
	secrets Secrets
}

// NewVerifier builds a Verifier over the given channel keys.
func NewVerifier(secrets Secrets) *Verifier {
	return &Verifier{secrets: secrets}
}

// Normalize undoes the JSON slash escaping some senders apply before signing.
func Normalize(payload string) string {
	return strings.ReplaceAll(payload, `\/`, "/")
}

// Verify reports whether signature authenticates payload on channel.
// It is pure and fails closed for unknown channels or missing inputs.
func (v *Verifier) Verify(payload, signature string, channel model.Channel) bool {
	secret := v.secretFor(channel)
	if secret == "" || signature == "" {
		return false
	}
	expected := compute(secret, payload)
	provided := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(expected), []byte(provided))
}

// Sign produces the signature the gateway would attach to payload on channel.
func (v *Verifier) Sign(payload string, channel model.Channel) (string, error) {
	secret := v.secretFor(channel)
	if secret == "" {
		return "", ErrNoSecret
	}
	return compute(secret, payload), nil
}

func (v *Verifier) secretFor(channel model.Channel) string {
	switch channel {
	case model.ChannelBrowser:
		return v.secrets.Browser
	case model.ChannelWebhook:
		return v.secrets.Webhook
	default:
		return ""
	}
}

func compute(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Normalize(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}
