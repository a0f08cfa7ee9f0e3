package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// WebhookVerifier authenticates inbound gateway callbacks. The
// provider signs the raw request body with HMAC-SHA256 using a shared
// secret and sends the hex digest in a header.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Sign computes the hex HMAC-SHA256 digest of a payload. Exposed for
// tests and webhook tooling.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the supplied signature against the expected digest
// in constant time. The raw, unparsed body must be used: any
// re-serialization would change the digest.
func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := v.Sign(body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
