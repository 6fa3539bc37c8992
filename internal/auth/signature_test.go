package auth

import (
	"net/url"
	"testing"
)

func TestVerifyAcceptsSelfSignedParameters(t *testing.T) {
	verifier := NewSignatureVerifier([]byte("proxy-secret"))

	params := url.Values{
		"shop":                  {"s1.myshopify.com"},
		"logged_in_customer_id": {"cust-1"},
		"path_prefix":           {"/apps/stoa"},
		"timestamp":             {"1700000000"},
	}
	params.Set("signature", verifier.Sign(params))

	if !verifier.Verify(params) {
		t.Fatalf("expected self-signed parameters to verify")
	}
}

func TestVerifyCanonicalMessageIsDeterministic(t *testing.T) {
	params := url.Values{
		"b":         {"2"},
		"a":         {"1"},
		"multi":     {"x", "y"},
		"signature": {"ignored"},
	}

	first := canonicalMessage(params)
	second := canonicalMessage(params)
	if first != second {
		t.Fatalf("canonical message not deterministic: %q vs %q", first, second)
	}
	if first != "a=1b=2multi=x,y" {
		t.Fatalf("unexpected canonical message: %q", first)
	}
}

func TestVerifyRejectsTamperedParameters(t *testing.T) {
	verifier := NewSignatureVerifier([]byte("proxy-secret"))

	params := url.Values{
		"shop":        {"s1.myshopify.com"},
		"path_prefix": {"/apps/stoa"},
	}
	params.Set("signature", verifier.Sign(params))
	params.Set("shop", "evil.myshopify.com")

	if verifier.Verify(params) {
		t.Fatalf("expected tampered parameters to fail verification")
	}
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	verifier := NewSignatureVerifier([]byte("proxy-secret"))

	if verifier.Verify(url.Values{"shop": {"s1.myshopify.com"}}) {
		t.Fatalf("expected missing signature to fail")
	}
	if verifier.Verify(url.Values{"shop": {"s1.myshopify.com"}, "signature": {""}}) {
		t.Fatalf("expected empty signature to fail")
	}
}

func TestVerifyFailsClosedWithoutSecret(t *testing.T) {
	verifier := NewSignatureVerifier(nil)

	params := url.Values{"shop": {"s1.myshopify.com"}}
	params.Set("signature", verifier.Sign(params))

	if verifier.Verify(params) {
		t.Fatalf("expected verification to fail closed with no secret configured")
	}
}
