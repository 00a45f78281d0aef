package model

import (
	"time"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// Operation names match the contract entry points one-to-one.
type Operation string

const (
	OpCreateProfile     Operation = "create-profile"
	OpUpdateProfile     Operation = "update-profile"
	OpFollowUser        Operation = "follow-user"
	OpUnfollowUser      Operation = "unfollow-user"
	OpPostPublicMessage Operation = "post-public-message"
	OpSendDirectMessage Operation = "send-direct-message"
	OpReactToMessage    Operation = "react-to-message"
	OpRemoveReaction    Operation = "remove-reaction"
)

type PendingTxStatus int

const (
	PendingTxSubmitted PendingTxStatus = iota
	PendingTxConfirmed
	PendingTxFailed
)

// PendingTx records a submitted-but-unfinalized write. It lives in the
// outbox until reconciliation confirms or rolls it back; while present it
// is overlaid on cached view state as a provisional effect.
type PendingTx struct {
	TxID      string              `db:"TxID"`
	CreatedAt time.Time           `db:"CreatedAt"`
	Status    PendingTxStatus     `db:"Status"`
	Sender    principal.Principal `db:"Sender"`
	Operation Operation           `db:"Operation"`
	Payload   string              `db:"Payload"`
}
