package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// HMACVerifier checks Shopify's X-Shopify-Hmac-Sha256 header: a
// base64-encoded SHA-256 HMAC of the raw request body.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
