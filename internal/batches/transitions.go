package batches

import (
	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
)

// transitionTable is the closed set of legal lifecycle moves. Cancellation is
// allowed from every non-terminal state; payment_collection back to active
// models reactivating a paused batch.
var transitionTable = map[enums.BatchStatus][]enums.BatchStatus{
	enums.BatchStatusDraft: {
		enums.BatchStatusActive,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusActive: {
		enums.BatchStatusPaymentCollection,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusPaymentCollection: {
		enums.BatchStatusOrdering,
		enums.BatchStatusActive,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusOrdering: {
		enums.BatchStatusProcessing,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusProcessing: {
		enums.BatchStatusShipped,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusShipped: {
		enums.BatchStatusDelivered,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusDelivered: {
		enums.BatchStatusCompleted,
		enums.BatchStatusCancelled,
	},
	enums.BatchStatusCompleted: {},
	enums.BatchStatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to enums.BatchStatus) bool {
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionDetails travels on STATE_CONFLICT errors for rejected moves.
type TransitionDetails struct {
	From enums.BatchStatus `json:"from"`
	To   enums.BatchStatus `json:"to"`
}

// ValidateTransition returns a typed error naming both states when the move
// is not in the table.
func ValidateTransition(from, to enums.BatchStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown batch status")
	}
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid batch transition").
		WithDetails(TransitionDetails{From: from, To: to})
}
