package history

import (
	"context"
	"fmt"

	"github.com/data-explorer/backend/internal/models"
	"github.com/qmuntal/stateless"
)

// feedbackMachine binds a state machine to the entry's Feedback field.
// Unset may move to Yes or No; both are terminal.
func feedbackMachine(e *models.HistoryEntry) *stateless.StateMachine {
	sm := stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) {
			return e.Feedback, nil
		},
		func(_ context.Context, s stateless.State) error {
			fb, ok := s.(models.Feedback)
			if !ok {
				return fmt.Errorf("unexpected feedback state %v", s)
			}
			e.Feedback = fb
			return nil
		},
		stateless.FiringImmediate,
	)

	sm.Configure(models.FeedbackUnset).
		Permit(models.FeedbackYes, models.FeedbackYes).
		Permit(models.FeedbackNo, models.FeedbackNo)
	sm.Configure(models.FeedbackYes)
	sm.Configure(models.FeedbackNo)

	return sm
}

// fireFeedback moves e to the label state. Caller holds the tracker lock.
func fireFeedback(e *models.HistoryEntry, label models.Feedback) error {
	if e.Feedback != models.FeedbackUnset {
		return fmt.Errorf("%w: entry %s is %q", ErrFeedbackAlreadySet, e.ID, e.Feedback)
	}
	if err := feedbackMachine(e).Fire(label); err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	return nil
}
