package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const signatureParam = "signature"

// SignatureVerifier checks that inbound proxy query parameters were signed by
// the upstream platform with the shared application secret.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier constructs a verifier. An empty secret is accepted but
// causes every verification to fail closed.
func NewSignatureVerifier(secret []byte) *SignatureVerifier {
	return &SignatureVerifier{secret: append([]byte(nil), secret...)}
}

// Verify reports whether the supplied query parameters carry a valid platform
// signature. It never returns an error: any malformed input is simply invalid.
func (v *SignatureVerifier) Verify(params url.Values) bool {
	if len(v.secret) == 0 {
		return false
	}
	supplied := params.Get(signatureParam)
	if supplied == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(canonicalMessage(params)))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(supplied))
}

// Sign computes the platform signature for the supplied parameters. It exists
// so the proxy handshake can be exercised end to end without the upstream
// platform in the loop.
func (v *SignatureVerifier) Sign(params url.Values) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(canonicalMessage(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalMessage rebuilds the exact byte string the platform signs: every
// parameter except the signature itself, sorted by key, rendered key=value
// with multi-values comma-joined, concatenated with no separator.
func canonicalMessage(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == signatureParam {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(strings.Join(params[key], ","))
	}
	return builder.String()
}
