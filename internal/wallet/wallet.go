// Package wallet implements the connect handshake with a user-controlled
// signing agent. The client never receives raw key material over the
// network; the session key travels sealed under a per-handshake transit
// secret and is opened only on this machine.
package wallet

import (
	"context"
	"crypto/ecdsa"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// Identity is what a signing agent hands back after a successful connect.
type Identity struct {
	Principal  principal.Principal
	SigningKey *ecdsa.PrivateKey
}

// Connector initiates the out-of-band identity-proof exchange. Connect
// suspends the caller until the exchange completes, fails, or the context
// is cancelled.
type Connector interface {
	Connect(ctx context.Context) (*Identity, error)
}
