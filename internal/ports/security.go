package ports

// Identity is the verified caller identity supplied by the platform's
// identity provider. Email is the join key into the purchase ledger.
type Identity struct {
	Subject string
	Email   string
}

// IdentityVerifier validates a bearer credential and yields the verified
// identity. The provider itself is a black box to this service.
type IdentityVerifier interface {
	Verify(rawToken string) (Identity, error)
}

// NotificationVerifier checks the authenticity of an inbound processor
// webhook before any state is touched.
type NotificationVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}
