// Package social implements the write and read operations of the
// application. Every write runs the same pipeline: session gate,
// validation, transaction construction, signing with the session key,
// broadcast, and a pending-overlay record. Validation failures never reach
// the network.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/chainvoice/chainvoice-go/internal/ledger"
	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/internal/session"
	"github.com/chainvoice/chainvoice-go/internal/viewstate"
	"github.com/chainvoice/chainvoice-go/pkg/clarval"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
	"github.com/chainvoice/chainvoice-go/pkg/tx"
)

// Broadcaster is the submission half of the ledger client.
type Broadcaster interface {
	Broadcast(ctx context.Context, envelope *tx.Envelope) (string, error)
}

type Service struct {
	session  *session.Manager
	client   Broadcaster
	query    *ledger.QueryClient
	cache    *viewstate.Cache
	profiles tx.Contract
	messages tx.Contract
	network  principal.Network
}

func New(sessionManager *session.Manager, client Broadcaster, query *ledger.QueryClient,
	cache *viewstate.Cache, profiles, messages tx.Contract, network principal.Network) *Service {
	return &Service{
		session:  sessionManager,
		client:   client,
		query:    query,
		cache:    cache,
		profiles: profiles,
		messages: messages,
		network:  network,
	}
}

// CreateProfile registers the signed-in principal's profile. The username
// is write-once; a second create is rejected by the contract and surfaces
// as a transport error.
func (s *Service) CreateProfile(ctx context.Context, username, displayName, bio, avatarURL string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	if err := validateUsername(username); err != nil {
		return "", err
	}

	return s.submit(ctx, s.profiles, model.OpCreateProfile,
		clarval.StringASCII(username),
		clarval.StringUTF8(displayName),
		clarval.StringUTF8(bio),
		clarval.StringUTF8(avatarURL),
	)
}

func (s *Service) UpdateProfile(ctx context.Context, displayName, bio, avatarURL string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}

	return s.submit(ctx, s.profiles, model.OpUpdateProfile,
		clarval.StringUTF8(displayName),
		clarval.StringUTF8(bio),
		clarval.StringUTF8(avatarURL),
	)
}

func (s *Service) FollowUser(ctx context.Context, target string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	followee, err := s.validateOtherPrincipal("target", target)
	if err != nil {
		return "", err
	}

	return s.submit(ctx, s.profiles, model.OpFollowUser, clarval.Principal(followee))
}

func (s *Service) UnfollowUser(ctx context.Context, target string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	followee, err := s.validateOtherPrincipal("target", target)
	if err != nil {
		return "", err
	}

	return s.submit(ctx, s.profiles, model.OpUnfollowUser, clarval.Principal(followee))
}

func (s *Service) PostPublicMessage(ctx context.Context, content string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	if err := validateContent(content); err != nil {
		return "", err
	}

	return s.submit(ctx, s.messages, model.OpPostPublicMessage, clarval.StringUTF8(content))
}

func (s *Service) SendDirectMessage(ctx context.Context, recipient, content string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	to, err := s.validateOtherPrincipal("recipient", recipient)
	if err != nil {
		return "", err
	}
	if err := validateContent(content); err != nil {
		return "", err
	}

	return s.submit(ctx, s.messages, model.OpSendDirectMessage,
		clarval.Principal(to), clarval.StringUTF8(content))
}

func (s *Service) ReactToMessage(ctx context.Context, id model.MessageID, emoji string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	if err := validateEmoji(emoji); err != nil {
		return "", err
	}

	return s.submit(ctx, s.messages, model.OpReactToMessage,
		clarval.Uint(uint64(id)), clarval.StringUTF8(emoji))
}

func (s *Service) RemoveReaction(ctx context.Context, id model.MessageID, emoji string) (string, error) {
	if err := s.session.RequireSignedIn(); err != nil {
		return "", err
	}
	if err := validateEmoji(emoji); err != nil {
		return "", err
	}

	return s.submit(ctx, s.messages, model.OpRemoveReaction,
		clarval.Uint(uint64(id)), clarval.StringUTF8(emoji))
}

// Read queries pass straight through to the ledger; the view layer decides
// what to mirror.

func (s *Service) GetProfile(ctx context.Context, p principal.Principal) (*model.Profile, error) {
	return s.query.GetProfile(ctx, p)
}

func (s *Service) GetUserStats(ctx context.Context, p principal.Principal) (*model.UserStats, error) {
	return s.query.GetUserStats(ctx, p)
}

func (s *Service) GetMessage(ctx context.Context, id model.MessageID) (*model.Message, error) {
	return s.query.GetMessage(ctx, id)
}

func (s *Service) GetMessageCount(ctx context.Context) (uint64, error) {
	return s.query.GetMessageCount(ctx)
}

func (s *Service) IsFollowing(ctx context.Context, follower, followee principal.Principal) (bool, error) {
	return s.query.IsFollowing(ctx, follower, followee)
}

// submit signs and broadcasts one operation, then files it in the pending
// overlay. The broadcast returns on mempool acceptance; finalization is
// observed later by reconciliation.
func (s *Service) submit(ctx context.Context, contract tx.Contract, op model.Operation, args ...clarval.Value) (string, error) {
	sender, signingKey, err := s.session.Signer()
	if err != nil {
		return "", err
	}

	descriptor, err := tx.NewContractCall(contract, string(op), s.network, args...)
	if err != nil {
		return "", fmt.Errorf("building %s: %w", op, err)
	}

	envelope, err := tx.Sign(descriptor, sender, signingKey)
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", op, err)
	}

	txID, err := s.client.Broadcast(ctx, envelope)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(descriptor)
	if err != nil {
		return "", fmt.Errorf("marshalling pending payload: %w", err)
	}

	pending := &model.PendingTx{
		TxID:      txID,
		CreatedAt: time.Now().UTC(),
		Status:    model.PendingTxSubmitted,
		Sender:    sender,
		Operation: op,
		Payload:   string(payload),
	}
	if err := s.cache.RecordPending(pending); err != nil {
		return "", fmt.Errorf("recording pending transaction: %w", err)
	}

	return txID, nil
}

func (s *Service) validateOtherPrincipal(field, value string) (principal.Principal, error) {
	if value == "" {
		return "", model.NewValidationError(field, "must not be empty")
	}
	parsed, err := principal.Parse(value)
	if err != nil {
		return "", model.NewValidationError(field, "not a valid principal")
	}
	if self, ok := s.session.CurrentPrincipal(); ok && parsed == self {
		return "", model.NewValidationError(field, "must not be your own principal")
	}
	return parsed, nil
}

func validateContent(content string) error {
	length := utf8.RuneCountInString(content)
	if length < 1 {
		return model.NewValidationError("content", "must not be empty")
	}
	if length > model.MaxContentRunes {
		return model.NewValidationError("content",
			fmt.Sprintf("must be at most %d characters, got %d", model.MaxContentRunes, length))
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return model.NewValidationError("username", "must not be empty")
	}
	for _, r := range username {
		if r > 0x7f {
			return model.NewValidationError("username", "must contain only ascii characters")
		}
	}
	return nil
}

func validateEmoji(emoji string) error {
	if emoji == "" {
		return model.NewValidationError("emoji", "must not be empty")
	}
	return nil
}
