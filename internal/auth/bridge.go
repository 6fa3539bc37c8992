package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SessionState names the outcome of the per-request authentication handshake.
type SessionState string

const (
	// StateProxyVerified means the request carried a valid platform signature.
	// The customer id may still be empty when the visitor is anonymous upstream.
	StateProxyVerified SessionState = "proxy_verified"
	// StateCookieFallback means identity was recovered from the session cookie.
	StateCookieFallback SessionState = "cookie_fallback"
	// StateRejected means neither the signature nor the cookie established
	// anything; handlers render a sign-in prompt with HTTP 200.
	StateRejected SessionState = "rejected"
)

const (
	paramShop       = "shop"
	paramCustomerID = "logged_in_customer_id"
	paramPathPrefix = "path_prefix"
)

var (
	errMissingVerifier   = errors.New("auth: signature verifier required")
	errMissingTokenCodec = errors.New("auth: token codec required")
	errMissingCookieName = errors.New("auth: cookie name required")
)

// RequestContext is the resolved identity for one request. It is computed once
// by the bridge and passed explicitly to everything downstream; nothing else
// re-derives shop, customer, or base path from the raw request.
type RequestContext struct {
	State      SessionState
	Shop       string
	CustomerID string
	BasePath   string
}

// Authenticated reports whether the request acts on behalf of a customer.
func (rc RequestContext) Authenticated() bool {
	return rc.State != StateRejected && rc.CustomerID != ""
}

// BridgeConfig bundles the dependencies of the session bridge.
type BridgeConfig struct {
	Verifier        *SignatureVerifier
	Codec           *TokenCodec
	CookieName      string
	DefaultBasePath string
	Logger          *zap.Logger
}

// Bridge implements the proxy-verified / cookie-fallback handshake.
type Bridge struct {
	verifier        *SignatureVerifier
	codec           *TokenCodec
	cookieName      string
	defaultBasePath string
	logger          *zap.Logger
}

// NewBridge constructs the bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Verifier == nil {
		return nil, errMissingVerifier
	}
	if cfg.Codec == nil {
		return nil, errMissingTokenCodec
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		return nil, errMissingCookieName
	}
	basePath := cfg.DefaultBasePath
	if basePath == "" {
		basePath = "/apps/stoa"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		verifier:        cfg.Verifier,
		codec:           cfg.Codec,
		cookieName:      cfg.CookieName,
		defaultBasePath: basePath,
		logger:          logger,
	}, nil
}

// CookieName returns the session cookie name the bridge reads and writes.
func (b *Bridge) CookieName() string {
	return b.cookieName
}

// Resolve runs the handshake for one request. On a proxy-verified request that
// identifies a customer it mints a fresh session cookie onto the response;
// the cookie-fallback path is read-only and never re-mints.
func (b *Bridge) Resolve(w http.ResponseWriter, r *http.Request) RequestContext {
	query := r.URL.Query()
	shop := query.Get(paramShop)
	customerID := query.Get(paramCustomerID)
	pathPrefix := query.Get(paramPathPrefix)

	if b.verifier.Verify(query) && shop != "" && pathPrefix != "" {
		ctx := RequestContext{
			State:      StateProxyVerified,
			Shop:       shop,
			CustomerID: customerID,
			BasePath:   pathPrefix,
		}
		// An anonymous storefront visitor is still proxy-verified; only a
		// known customer gets a session minted.
		if customerID != "" {
			b.mintCookie(w, ctx)
		}
		return ctx
	}

	if cookie, err := r.Cookie(b.cookieName); err == nil && cookie != nil {
		token, err := b.codec.Decode(cookie.Value)
		if err == nil {
			return RequestContext{
				State:      StateCookieFallback,
				Shop:       firstNonEmpty(shop, token.Shop),
				CustomerID: token.CustomerID,
				BasePath:   firstNonEmpty(pathPrefix, token.PathPrefix, b.defaultBasePath),
			}
		}
		if !errors.Is(err, ErrExpiredToken) {
			b.logger.Debug("session cookie rejected", zap.Error(err))
		}
	}

	return RequestContext{
		State:    StateRejected,
		Shop:     shop,
		BasePath: firstNonEmpty(pathPrefix, b.defaultBasePath),
	}
}

func (b *Bridge) mintCookie(w http.ResponseWriter, ctx RequestContext) {
	value, err := b.codec.Mint(ctx.CustomerID, ctx.Shop, ctx.BasePath)
	if err != nil {
		b.logger.Warn("failed to mint session token", zap.Error(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName,
		Value:    value,
		Path:     ctx.BasePath,
		MaxAge:   int(SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
