package social

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	testifyassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvoice/chainvoice-go/internal/ledger"
	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/internal/session"
	"github.com/chainvoice/chainvoice-go/internal/viewstate"
	"github.com/chainvoice/chainvoice-go/internal/wallet"
	"github.com/chainvoice/chainvoice-go/pkg/keys"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
	"github.com/chainvoice/chainvoice-go/pkg/tx"
)

type fakeConnector struct {
	identity *wallet.Identity
}

func (f *fakeConnector) Connect(ctx context.Context) (*wallet.Identity, error) {
	return f.identity, nil
}

type fakeBroadcaster struct {
	envelopes []*tx.Envelope
	err       error
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, envelope *tx.Envelope) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.envelopes = append(f.envelopes, envelope)
	return envelope.TxID, nil
}

func (f *fakeBroadcaster) operations() []string {
	ops := make([]string, 0, len(f.envelopes))
	for _, envelope := range f.envelopes {
		ops = append(ops, envelope.Function)
	}
	return ops
}

type fixture struct {
	service     *Service
	broadcaster *fakeBroadcaster
	manager     *session.Manager
	self        principal.Principal
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()

	privateKey, err := keys.Generate()
	require.Nil(t, err)
	self, err := principal.FromPublicKey(&privateKey.PublicKey, principal.NetworkTestnet)
	require.Nil(t, err)
	identity := &wallet.Identity{Principal: self, SigningKey: privateKey}

	store, err := session.OpenStore(t.TempDir())
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })

	manager, err := session.NewManager(store, &fakeConnector{identity: identity})
	require.Nil(t, err)
	if signedIn {
		_, err = manager.Connect(context.Background())
		require.Nil(t, err)
	}

	outbox, err := viewstate.OpenOutbox(t.TempDir())
	require.Nil(t, err)
	cache := viewstate.NewCache(outbox, func(ctx context.Context, txID string) (ledger.TxStatus, error) {
		return ledger.TxStatusPending, nil
	})
	t.Cleanup(func() { cache.Close() })

	broadcaster := &fakeBroadcaster{}
	profiles := tx.Contract{Address: string(self), Name: "profiles"}
	messages := tx.Contract{Address: string(self), Name: "messages"}
	query := ledger.NewQueryClient(ledger.NewClient("http://127.0.0.1:1", nil, ledger.NoRetry), profiles, messages)

	return &fixture{
		service:     New(manager, broadcaster, query, cache, profiles, messages, principal.NetworkTestnet),
		broadcaster: broadcaster,
		manager:     manager,
		self:        self,
	}
}

func otherPrincipal(t *testing.T) principal.Principal {
	t.Helper()
	privateKey, err := keys.Generate()
	require.Nil(t, err)
	p, err := principal.FromPublicKey(&privateKey.PublicKey, principal.NetworkTestnet)
	require.Nil(t, err)
	return p
}

func TestWritesRequireSignedIn(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.service.PostPublicMessage(ctx, "hello")
	assert.ErrorIs(err, model.ErrorAuthRequired)

	_, err = f.service.CreateProfile(ctx, "alice", "", "", "")
	assert.ErrorIs(err, model.ErrorAuthRequired)

	_, err = f.service.FollowUser(ctx, string(otherPrincipal(t)))
	assert.ErrorIs(err, model.ErrorAuthRequired)

	assert.Empty(f.broadcaster.envelopes)
}

func TestContentValidation(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, true)
	ctx := context.Background()

	validationErr := &model.ValidationError{}

	t.Run("empty content fails with no network call", func(t *testing.T) {
		_, err := f.service.PostPublicMessage(ctx, "")
		assert.ErrorAs(err, &validationErr)
		assert.Empty(f.broadcaster.envelopes)
	})

	t.Run("281 characters fails with no network call", func(t *testing.T) {
		_, err := f.service.PostPublicMessage(ctx, strings.Repeat("a", 281))
		assert.ErrorAs(err, &validationErr)
		assert.Empty(f.broadcaster.envelopes)
	})

	t.Run("exactly 280 characters succeeds", func(t *testing.T) {
		txID, err := f.service.PostPublicMessage(ctx, strings.Repeat("a", 280))
		assert.Nil(err)
		assert.NotEmpty(txID)
		assert.Len(f.broadcaster.envelopes, 1)
	})

	t.Run("length is measured in runes, not bytes", func(t *testing.T) {
		// 280 multi-byte characters is far more than 280 bytes
		txID, err := f.service.PostPublicMessage(ctx, strings.Repeat("é", 280))
		assert.Nil(err)
		assert.NotEmpty(txID)

		_, err = f.service.PostPublicMessage(ctx, strings.Repeat("é", 281))
		assert.ErrorAs(err, &validationErr)
	})
}

func TestDirectMessageValidation(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, true)
	ctx := context.Background()
	validationErr := &model.ValidationError{}

	t.Run("empty recipient", func(t *testing.T) {
		_, err := f.service.SendDirectMessage(ctx, "", "psst")
		assert.ErrorAs(err, &validationErr)
	})

	t.Run("malformed recipient", func(t *testing.T) {
		_, err := f.service.SendDirectMessage(ctx, "not-a-principal", "psst")
		assert.ErrorAs(err, &validationErr)
	})

	t.Run("self recipient", func(t *testing.T) {
		_, err := f.service.SendDirectMessage(ctx, string(f.self), "psst")
		assert.ErrorAs(err, &validationErr)
	})

	t.Run("valid recipient succeeds", func(t *testing.T) {
		assert.Empty(f.broadcaster.envelopes)
		txID, err := f.service.SendDirectMessage(ctx, string(otherPrincipal(t)), "psst")
		assert.Nil(err)
		assert.NotEmpty(txID)
		assert.Equal([]string{"send-direct-message"}, f.broadcaster.operations())
	})
}

func TestProfileOperations(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, true)
	ctx := context.Background()
	validationErr := &model.ValidationError{}

	t.Run("empty username", func(t *testing.T) {
		_, err := f.service.CreateProfile(ctx, "", "Alice", "", "")
		assert.ErrorAs(err, &validationErr)
		assert.Empty(f.broadcaster.envelopes)
	})

	t.Run("non-ascii username", func(t *testing.T) {
		_, err := f.service.CreateProfile(ctx, "alicé", "Alice", "", "")
		assert.ErrorAs(err, &validationErr)
	})

	t.Run("create and update", func(t *testing.T) {
		_, err := f.service.CreateProfile(ctx, "alice", "Alice", "bio", "")
		assert.Nil(err)
		_, err = f.service.UpdateProfile(ctx, "Alice B", "new bio", "")
		assert.Nil(err)
		assert.Equal([]string{"create-profile", "update-profile"}, f.broadcaster.operations())
	})

	t.Run("contract rejection surfaces as transport error", func(t *testing.T) {
		f.broadcaster.err = model.NewTransportError("broadcast",
			testifyassert.AnError)
		_, err := f.service.CreateProfile(ctx, "alice", "Alice", "bio", "")
		transportErr := &model.TransportError{}
		assert.ErrorAs(err, &transportErr)
		f.broadcaster.err = nil
	})
}

func TestToggleRoundTrips(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, true)
	ctx := context.Background()
	other := otherPrincipal(t)

	t.Run("follow then unfollow submits a matched pair", func(t *testing.T) {
		_, err := f.service.FollowUser(ctx, string(other))
		assert.Nil(err)
		_, err = f.service.UnfollowUser(ctx, string(other))
		assert.Nil(err)
		assert.Equal([]string{"follow-user", "unfollow-user"}, f.broadcaster.operations())
	})

	t.Run("self follow rejected", func(t *testing.T) {
		validationErr := &model.ValidationError{}
		_, err := f.service.FollowUser(ctx, string(f.self))
		assert.ErrorAs(err, &validationErr)
	})

	t.Run("react then unreact submits a matched pair", func(t *testing.T) {
		before := len(f.broadcaster.envelopes)
		_, err := f.service.ReactToMessage(ctx, model.MessageID(7), "❤️")
		assert.Nil(err)
		_, err = f.service.RemoveReaction(ctx, model.MessageID(7), "❤️")
		assert.Nil(err)
		assert.Equal([]string{"react-to-message", "remove-reaction"},
			f.broadcaster.operations()[before:])
	})

	t.Run("empty emoji rejected", func(t *testing.T) {
		validationErr := &model.ValidationError{}
		_, err := f.service.ReactToMessage(ctx, model.MessageID(7), "")
		assert.ErrorAs(err, &validationErr)
	})
}

func TestSubmitRecordsPendingOverlay(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, true)
	ctx := context.Background()

	txID, err := f.service.PostPublicMessage(ctx, "hello world")
	assert.Nil(err)

	envelope := f.broadcaster.envelopes[0]
	assert.Equal(txID, envelope.TxID)
	assert.Equal(tx.PostConditionDeny, envelope.PostConditionMode)
	assert.Equal(string(f.self), envelope.Header.KeyID)
}
