// Package session owns the authentication session: a single state machine
// over {SignedOut, SignInPending, SignedIn} whose transitions all pass
// through the Manager. No caller ever observes a partially-updated session.
package session

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/internal/wallet"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

type Status int

const (
	SignedOut Status = iota
	SignInPending
	SignedIn
)

func (s Status) String() string {
	switch s {
	case SignedOut:
		return "signed-out"
	case SignInPending:
		return "sign-in-pending"
	case SignedIn:
		return "signed-in"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Manager is constructed once at process start and passed to every
// component that needs the session; there is no ambient global lookup.
type Manager struct {
	mu        sync.Mutex
	status    Status
	identity  *wallet.Identity
	connector wallet.Connector
	store     *Store
}

// NewManager restores any persisted sign-in before returning, so callers
// never render a stale signed-out state after a reload. A sign-in that was
// pending when the previous process died resolves to SignedOut.
func NewManager(store *Store, connector wallet.Connector) (*Manager, error) {
	m := &Manager{
		status:    SignedOut,
		connector: connector,
		store:     store,
	}
	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) restore() error {
	status, p, signingKey, err := m.store.Load()
	if err != nil {
		// unreadable persisted state resolves to signed out, not a crash
		if clearErr := m.store.Clear(); clearErr != nil {
			return fmt.Errorf("resetting unreadable session: %v (load: %w)", clearErr, err)
		}
		return nil
	}

	if status == SignedIn && signingKey != nil {
		m.status = SignedIn
		m.identity = &wallet.Identity{Principal: p, SigningKey: signingKey}
		return nil
	}

	if status == SignInPending {
		// abandoned handshake from a previous run
		if err := m.store.Clear(); err != nil {
			return fmt.Errorf("clearing abandoned sign-in: %w", err)
		}
	}
	return nil
}

// Connect runs the wallet handshake, suspending the caller until it
// resolves or the context is cancelled. Already signed in, it returns the
// current principal without a new handshake.
func (m *Manager) Connect(ctx context.Context) (principal.Principal, error) {
	m.mu.Lock()
	switch m.status {
	case SignedIn:
		p := m.identity.Principal
		m.mu.Unlock()
		return p, nil
	case SignInPending:
		m.mu.Unlock()
		return "", model.ErrorSignInPending
	}

	m.status = SignInPending
	if err := m.store.Save(SignInPending, "", nil); err != nil {
		m.status = SignedOut
		m.mu.Unlock()
		return "", err
	}
	m.mu.Unlock()

	// the handshake suspends only this caller, never the whole session
	identity, err := m.connector.Connect(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	// a Disconnect during the handshake wins: the resolved identity is
	// abandoned, never committed
	if m.status != SignInPending {
		if identity != nil && identity.SigningKey != nil {
			identity.SigningKey.D.SetInt64(0)
		}
		return "", model.ErrorConnectAborted
	}

	if err != nil {
		m.status = SignedOut
		m.identity = nil
		if clearErr := m.store.Clear(); clearErr != nil {
			return "", fmt.Errorf("clearing failed sign-in: %v (connect: %w)", clearErr, err)
		}
		return "", err
	}

	if err := m.store.Save(SignedIn, identity.Principal, identity.SigningKey); err != nil {
		m.status = SignedOut
		m.identity = nil
		return "", err
	}

	m.status = SignedIn
	m.identity = identity
	return identity.Principal, nil
}

// Disconnect clears the session and all key material before returning.
// It is idempotent: disconnecting while signed out is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity != nil && m.identity.SigningKey != nil {
		// scrub the scalar so no later call can sign with it
		m.identity.SigningKey.D.SetInt64(0)
	}
	m.identity = nil
	m.status = SignedOut

	if err := m.store.Clear(); err != nil {
		return err
	}
	return nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentPrincipal returns the signed-in principal, or false when the
// session is not SignedIn.
func (m *Manager) CurrentPrincipal() (principal.Principal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != SignedIn {
		return "", false
	}
	return m.identity.Principal, true
}

// RequireSignedIn gates every write operation.
func (m *Manager) RequireSignedIn() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != SignedIn {
		return model.ErrorAuthRequired
	}
	return nil
}

// Signer hands the social service the principal and signing key for
// transaction construction. Callers never receive key material unless the
// session is SignedIn.
func (m *Manager) Signer() (principal.Principal, *ecdsa.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != SignedIn {
		return "", nil, model.ErrorAuthRequired
	}
	return m.identity.Principal, m.identity.SigningKey, nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}
