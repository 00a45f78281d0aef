package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/clarval"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
	"github.com/chainvoice/chainvoice-go/pkg/tx"
)

// QueryClient wraps the raw call-read transport with the typed read-only
// interface of the profiles and messages contracts. Every query is
// idempotent and side-effect-free; "no data" is a nil result, not an error.
type QueryClient struct {
	client   *Client
	profiles tx.Contract
	messages tx.Contract
}

func NewQueryClient(client *Client, profiles, messages tx.Contract) *QueryClient {
	return &QueryClient{client: client, profiles: profiles, messages: messages}
}

// GetProfile returns nil,nil for a principal with no profile.
func (q *QueryClient) GetProfile(ctx context.Context, p principal.Principal) (*model.Profile, error) {
	result, err := q.client.CallReadOnly(ctx, q.profiles, "get-profile", q.profiles.Address, clarval.Principal(p))
	if err != nil {
		return nil, err
	}
	if result.IsNone() {
		return nil, nil
	}

	record, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("get-profile: %w", err)
	}

	profile := &model.Profile{Owner: p}
	if profile.Username, err = stringField(record, "username"); err != nil {
		return nil, err
	}
	if profile.DisplayName, err = stringField(record, "display-name"); err != nil {
		return nil, err
	}
	if profile.Bio, err = stringField(record, "bio"); err != nil {
		return nil, err
	}
	if profile.AvatarURL, err = stringField(record, "avatar-url"); err != nil {
		return nil, err
	}

	createdAt, err := uintField(record, "created-at")
	if err != nil {
		return nil, err
	}
	profile.CreatedAt = time.Unix(int64(createdAt), 0).UTC()

	updatedAt, err := record.Field("updated-at")
	if err == nil && !updatedAt.IsNone() {
		inner, err := updatedAt.Unwrap()
		if err != nil {
			return nil, fmt.Errorf("get-profile: %w", err)
		}
		raw, err := inner.AsUint()
		if err != nil {
			return nil, fmt.Errorf("get-profile: %w", err)
		}
		ts := time.Unix(int64(raw), 0).UTC()
		profile.UpdatedAt = &ts
	}

	return profile, nil
}

// GetUserStats returns the ledger-computed aggregate, nil when the
// principal has no profile.
func (q *QueryClient) GetUserStats(ctx context.Context, p principal.Principal) (*model.UserStats, error) {
	result, err := q.client.CallReadOnly(ctx, q.profiles, "get-user-stats", q.profiles.Address, clarval.Principal(p))
	if err != nil {
		return nil, err
	}
	if result.IsNone() {
		return nil, nil
	}

	record, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("get-user-stats: %w", err)
	}

	stats := &model.UserStats{}
	if stats.MessageCount, err = uintField(record, "message-count"); err != nil {
		return nil, err
	}
	if stats.FollowerCount, err = uintField(record, "follower-count"); err != nil {
		return nil, err
	}
	if stats.FollowingCount, err = uintField(record, "following-count"); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetMessage returns nil,nil for an unknown message id.
func (q *QueryClient) GetMessage(ctx context.Context, id model.MessageID) (*model.Message, error) {
	result, err := q.client.CallReadOnly(ctx, q.messages, "get-message", q.messages.Address, clarval.Uint(uint64(id)))
	if err != nil {
		return nil, err
	}
	if result.IsNone() {
		return nil, nil
	}

	record, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("get-message: %w", err)
	}

	message := &model.Message{ID: id}

	author, err := record.Field("author")
	if err != nil {
		return nil, err
	}
	if message.Author, err = author.AsPrincipal(); err != nil {
		return nil, fmt.Errorf("get-message: %w", err)
	}

	if message.Content, err = stringField(record, "content"); err != nil {
		return nil, err
	}

	isPublic, err := record.Field("is-public")
	if err != nil {
		return nil, err
	}
	if message.IsPublic, err = isPublic.AsBool(); err != nil {
		return nil, fmt.Errorf("get-message: %w", err)
	}

	recipient, err := record.Field("recipient")
	if err == nil && !recipient.IsNone() {
		inner, err := recipient.Unwrap()
		if err != nil {
			return nil, fmt.Errorf("get-message: %w", err)
		}
		p, err := inner.AsPrincipal()
		if err != nil {
			return nil, fmt.Errorf("get-message: %w", err)
		}
		message.Recipient = &p
	}

	timestamp, err := uintField(record, "timestamp")
	if err != nil {
		return nil, err
	}
	message.Timestamp = time.Unix(int64(timestamp), 0).UTC()

	return message, nil
}

func (q *QueryClient) GetMessageCount(ctx context.Context) (uint64, error) {
	result, err := q.client.CallReadOnly(ctx, q.messages, "get-message-count", q.messages.Address)
	if err != nil {
		return 0, err
	}
	value, err := result.Unwrap()
	if err != nil {
		return 0, fmt.Errorf("get-message-count: %w", err)
	}
	count, err := value.AsUint()
	if err != nil {
		return 0, fmt.Errorf("get-message-count: %w", err)
	}
	return count, nil
}

// IsFollowing reports whether the ordered follow edge exists. A missing
// edge is false, never an error.
func (q *QueryClient) IsFollowing(ctx context.Context, follower, followee principal.Principal) (bool, error) {
	result, err := q.client.CallReadOnly(ctx, q.profiles, "is-following", q.profiles.Address,
		clarval.Principal(follower), clarval.Principal(followee))
	if err != nil {
		return false, err
	}
	if result.IsNone() {
		return false, nil
	}
	value, err := result.Unwrap()
	if err != nil {
		return false, fmt.Errorf("is-following: %w", err)
	}
	following, err := value.AsBool()
	if err != nil {
		return false, fmt.Errorf("is-following: %w", err)
	}
	return following, nil
}

func stringField(record clarval.Value, name string) (string, error) {
	field, err := record.Field(name)
	if err != nil {
		return "", err
	}
	value, err := field.AsString()
	if err != nil {
		return "", fmt.Errorf("field %s: %w", name, err)
	}
	return value, nil
}

func uintField(record clarval.Value, name string) (uint64, error) {
	field, err := record.Field(name)
	if err != nil {
		return 0, err
	}
	value, err := field.AsUint()
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", name, err)
	}
	return value, nil
}
