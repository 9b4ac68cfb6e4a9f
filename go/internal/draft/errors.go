package draft

import (
	"fmt"
)

// RejectReason is a machine readable code for a rejected pick.
type RejectReason string

const (
	RejectRoundLocked   RejectReason = "ROUND_LOCKED"
	RejectNotDrafting   RejectReason = "NOT_DRAFTING"
	RejectSpectator     RejectReason = "SPECTATOR"
	RejectWrongTurn     RejectReason = "WRONG_TURN"
	RejectDeadlinePast  RejectReason = "DEADLINE_PAST"
	RejectNotOffered    RejectReason = "NOT_OFFERED"
	RejectAlreadyTaken  RejectReason = "ALREADY_TAKEN"
	RejectLegendaryHeld RejectReason = "LEGENDARY_HELD"
)

// PickRejectedError is returned by SubmitPick when a precondition fails.
// No state is mutated on rejection.
type PickRejectedError struct {
	Reason RejectReason
	Detail string
}

func (e *PickRejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("pick rejected: %s", e.Reason)
	}
	return fmt.Sprintf("pick rejected: %s: %s", e.Reason, e.Detail)
}

func rejected(reason RejectReason, detail string) *PickRejectedError {
	return &PickRejectedError{Reason: reason, Detail: detail}
}
