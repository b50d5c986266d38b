package decrypt

import "context"

// Passthrough returns its input unchanged. It is the Decryptor for streams
// configured with no key material.
type Passthrough struct{}

// NewPassthrough returns a no-op Decryptor.
func NewPassthrough() *Passthrough { return &Passthrough{} }

// Decrypt returns payload unchanged, ignoring kid.
func (p *Passthrough) Decrypt(_ context.Context, payload []byte, _ string) ([]byte, error) {
	return payload, nil
}
