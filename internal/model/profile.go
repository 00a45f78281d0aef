package model

import (
	"time"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// Profile is the on-ledger identity record for a principal. The username is
// write-once; the remaining fields are mutable by the owner only.
type Profile struct {
	Owner       principal.Principal `json:"owner"`
	Username    string              `json:"username"`
	DisplayName string              `json:"displayName,omitempty"`
	Bio         string              `json:"bio,omitempty"`
	AvatarURL   string              `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   *time.Time          `json:"updatedAt,omitempty"`
}

// UserStats is a ledger-computed aggregate. It is never maintained locally.
type UserStats struct {
	MessageCount   uint64 `json:"messageCount"`
	FollowerCount  uint64 `json:"followerCount"`
	FollowingCount uint64 `json:"followingCount"`
}

type FollowEdge struct {
	Follower principal.Principal `json:"follower"`
	Followee principal.Principal `json:"followee"`
}
