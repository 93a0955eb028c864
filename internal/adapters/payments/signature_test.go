package payments

import (
	"strings"
	"testing"
	"time"
)

func fixedVerifier(secret string, now time.Time, tolerance time.Duration) *SignatureVerifier {
	v := NewSignatureVerifier(secret, tolerance)
	v.nowFn = func() time.Time { return now }
	return v
}

func TestVerifyAcceptsFreshSignature(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	payload := []byte(`{"id":"ntf-1"}`)
	v := fixedVerifier("whsec_test", now, 5*time.Minute)

	if err := v.Verify(payload, Sign("whsec_test", payload, now)); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	payload := []byte(`{"id":"ntf-1"}`)
	v := fixedVerifier("whsec_test", now, 5*time.Minute)

	if err := v.Verify(payload, Sign("whsec_other", payload, now)); err == nil {
		t.Fatalf("expected rejection for wrong secret")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	v := fixedVerifier("whsec_test", now, 5*time.Minute)
	header := Sign("whsec_test", []byte(`{"amount":100}`), now)

	if err := v.Verify([]byte(`{"amount":10000}`), header); err == nil {
		t.Fatalf("expected rejection for tampered payload")
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	payload := []byte(`{"id":"ntf-1"}`)
	v := fixedVerifier("whsec_test", now, 5*time.Minute)
	header := Sign("whsec_test", payload, now.Add(-10*time.Minute))

	if err := v.Verify(payload, header); err == nil {
		t.Fatalf("expected rejection for stale timestamp")
	}
}

func TestVerifyRejectsMalformedHeaders(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	payload := []byte(`{"id":"ntf-1"}`)
	v := fixedVerifier("whsec_test", now, 5*time.Minute)

	for _, header := range []string{
		"",
		"t=abc,v1=deadbeef",
		"v1=deadbeef",
		"t=1750000000",
		"garbage",
	} {
		if err := v.Verify(payload, header); err == nil {
			t.Fatalf("expected rejection for header %q", header)
		}
	}
}

func TestVerifyAcceptsAnyMatchingV1(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_750_000_000, 0)
	payload := []byte(`{"id":"ntf-1"}`)
	v := fixedVerifier("whsec_test", now, 5*time.Minute)

	// Processors send multiple v1 entries during secret rotation; any match
	// passes.
	valid := Sign("whsec_test", payload, now)
	header := strings.Replace(valid, ",v1=", ",v1=0000,v1=", 1)
	if err := v.Verify(payload, header); err != nil {
		t.Fatalf("expected match among multiple signatures, got %v", err)
	}
}
