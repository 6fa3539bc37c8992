package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// SessionTTL is the rolling lifetime of a minted session token. Tokens are
// never renewed passively; a fresh proxy-signed request re-mints the cookie.
const SessionTTL = 7 * 24 * time.Hour

var (
	ErrMissingSigningSecret = errors.New("auth: signing secret required")
	ErrInvalidToken         = errors.New("auth: invalid session token")
	ErrExpiredToken         = errors.New("auth: session token expired")
)

// SessionToken is the payload carried by the signed session cookie. It bridges
// the customer identity established by a proxy-signed request across follow-up
// requests that arrive without fresh platform signing.
type SessionToken struct {
	CustomerID     string `json:"customer_id"`
	Shop           string `json:"shop"`
	PathPrefix     string `json:"path_prefix"`
	ExpiresAtMilli int64  `json:"exp"`
}

// TokenCodecConfig configures the signed token codec.
type TokenCodecConfig struct {
	Secret []byte
	Clock  func() time.Time
}

// TokenCodec encodes a session token as base64url(JSON) + "." + hex HMAC-SHA256
// over the encoded segment, and verifies the reverse direction.
type TokenCodec struct {
	secret []byte
	clock  func() time.Time
}

// NewTokenCodec constructs a codec. The secret is required because the token
// crosses a trust boundary (it is the session credential).
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenCodec{
		secret: append([]byte(nil), cfg.Secret...),
		clock:  clock,
	}, nil
}

// Mint produces a signed token for the identity with the full session TTL.
func (c *TokenCodec) Mint(customerID, shop, pathPrefix string) (string, error) {
	token := SessionToken{
		CustomerID:     customerID,
		Shop:           shop,
		PathPrefix:     pathPrefix,
		ExpiresAtMilli: c.clock().Add(SessionTTL).UnixMilli(),
	}
	return c.Encode(token)
}

// Encode serializes and signs the token.
func (c *TokenCodec) Encode(token SessionToken) (string, error) {
	payload, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies the MAC in constant time, unpacks the payload, and enforces
// expiry. Every failure mode reports an invalid token; nothing panics.
func (c *TokenCodec) Decode(value string) (SessionToken, error) {
	segments := strings.Split(value, ".")
	if len(segments) != 2 {
		return SessionToken{}, ErrInvalidToken
	}
	encoded, suppliedMAC := segments[0], segments[1]
	if !hmac.Equal([]byte(c.sign(encoded)), []byte(suppliedMAC)) {
		return SessionToken{}, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return SessionToken{}, ErrInvalidToken
	}
	var token SessionToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return SessionToken{}, ErrInvalidToken
	}
	if token.CustomerID == "" || token.Shop == "" || token.ExpiresAtMilli == 0 {
		return SessionToken{}, ErrInvalidToken
	}
	if token.ExpiresAtMilli <= c.clock().UnixMilli() {
		return SessionToken{}, ErrExpiredToken
	}
	return token, nil
}

func (c *TokenCodec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
