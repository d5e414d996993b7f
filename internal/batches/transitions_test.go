package batches

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialshare/vialshare-backend/pkg/enums"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
)

func TestCanTransitionForwardPath(t *testing.T) {
	t.Parallel()

	path := []enums.BatchStatus{
		enums.BatchStatusDraft,
		enums.BatchStatusActive,
		enums.BatchStatusPaymentCollection,
		enums.BatchStatusOrdering,
		enums.BatchStatusProcessing,
		enums.BatchStatusShipped,
		enums.BatchStatusDelivered,
		enums.BatchStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransitionCancellation(t *testing.T) {
	t.Parallel()

	nonTerminal := []enums.BatchStatus{
		enums.BatchStatusDraft,
		enums.BatchStatusActive,
		enums.BatchStatusPaymentCollection,
		enums.BatchStatusOrdering,
		enums.BatchStatusProcessing,
		enums.BatchStatusShipped,
		enums.BatchStatusDelivered,
	}
	for _, from := range nonTerminal {
		assert.True(t, CanTransition(from, enums.BatchStatusCancelled), "%s -> cancelled", from)
	}
	assert.False(t, CanTransition(enums.BatchStatusCompleted, enums.BatchStatusCancelled))
	assert.False(t, CanTransition(enums.BatchStatusCancelled, enums.BatchStatusDraft))
}

func TestCanTransitionReactivation(t *testing.T) {
	t.Parallel()

	assert.True(t, CanTransition(enums.BatchStatusPaymentCollection, enums.BatchStatusActive))
	assert.False(t, CanTransition(enums.BatchStatusOrdering, enums.BatchStatusActive))
	assert.False(t, CanTransition(enums.BatchStatusActive, enums.BatchStatusOrdering))
}

func TestValidateTransitionDetails(t *testing.T) {
	t.Parallel()

	err := ValidateTransition(enums.BatchStatusShipped, enums.BatchStatusActive)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	details, ok := typed.Details().(TransitionDetails)
	require.True(t, ok)
	assert.Equal(t, enums.BatchStatusShipped, details.From)
	assert.Equal(t, enums.BatchStatusActive, details.To)

	err = ValidateTransition(enums.BatchStatusDraft, enums.BatchStatus("launched"))
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
