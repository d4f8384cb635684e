package models

import "time"

// MutationKind is the logical cart operation of a PendingMutation.
type MutationKind int

const (
	MutationAdd MutationKind = iota
	MutationUpdateQuantity
	MutationRemove
	MutationClear
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationUpdateQuantity:
		return "update_quantity"
	case MutationRemove:
		return "remove"
	case MutationClear:
		return "clear"
	default:
		return "unknown"
	}
}

// PendingMutation is a cart operation in flight. Attempt is 0 on the first
// try and 1 after identifier repair.
type PendingMutation struct {
	Kind      MutationKind
	Reference CartReference
	Lines     []LineInput
	Updates   []LineUpdate
	Targets   []LineTarget
	Attempt   int
	StartedAt time.Time
}
