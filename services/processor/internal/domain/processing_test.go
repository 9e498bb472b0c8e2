package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestOrderProcessing_CanTransitionTo(t *testing.T) {
	t.Run("pending_can_start_or_fail", func(t *testing.T) {
		p := &OrderProcessing{Status: StatusPending}
		assert.True(t, p.CanTransitionTo(StatusProcessing))
		assert.True(t, p.CanTransitionTo(StatusFailed))
		assert.False(t, p.CanTransitionTo(StatusSuccess))
		assert.False(t, p.CanTransitionTo(StatusPending))
	})

	t.Run("processing_can_finish_either_way", func(t *testing.T) {
		p := &OrderProcessing{Status: StatusProcessing}
		assert.True(t, p.CanTransitionTo(StatusSuccess))
		assert.True(t, p.CanTransitionTo(StatusFailed))
		assert.False(t, p.CanTransitionTo(StatusPending))
		assert.False(t, p.CanTransitionTo(StatusProcessing))
	})

	t.Run("terminal_states_never_move", func(t *testing.T) {
		for _, status := range []ProcessingStatus{StatusSuccess, StatusFailed} {
			p := &OrderProcessing{Status: status}
			for _, next := range []ProcessingStatus{StatusPending, StatusProcessing, StatusSuccess, StatusFailed} {
				assert.False(t, p.CanTransitionTo(next), "%s -> %s must be rejected", status, next)
			}
		}
	})
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrValidation("bad input")))
	assert.True(t, IsValidation(ErrValidationMeta("bad input", map[string]string{"order_id": "x"})))
	assert.False(t, IsValidation(ErrNotFoundMeta("nope", nil)))
	assert.False(t, IsValidation(ErrRepository))
	assert.False(t, IsValidation(nil))
}
