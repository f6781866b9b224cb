// Package history keeps the per-session record of asked questions, their
// answers and the feedback given on them.
package history

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/data-explorer/backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrEmptyPrompt        = errors.New("prompt must not be empty")
	ErrIndexOutOfRange    = errors.New("history index out of range")
	ErrEntryNotFound      = errors.New("history entry not found")
	ErrInvalidFeedback    = errors.New(`feedback must be "Yes" or "No"`)
	ErrFeedbackAlreadySet = errors.New("feedback already recorded for this entry")
	ErrFeedbackNotAllowed = errors.New("feedback is not accepted on failed answers")
)

// LabelLength is how many characters of a prompt are shown in history lists.
const LabelLength = 50

// Options controls how failed answers are treated.
type Options struct {
	// RecordFailures appends entries whose response is a query error message.
	RecordFailures bool
	// AllowFeedbackOnFailures lets users rate entries whose response is an error.
	AllowFeedbackOnFailures bool
}

// DefaultOptions records failures and lets them receive feedback like any
// other answer.
func DefaultOptions() Options {
	return Options{
		RecordFailures:          true,
		AllowFeedbackOnFailures: true,
	}
}

// Record is the input for Append.
type Record struct {
	Prompt   string
	Response string
	Failed   bool
	FileID   string
	FileName string
}

// Tracker is an ordered, session-scoped list of history entries.
type Tracker struct {
	mu      sync.RWMutex
	entries []*models.HistoryEntry
	opts    Options
	now     func() time.Time

	// skipped is set while the latest answer was a failure left out of the
	// history, so positional feedback has nothing to attach to.
	skipped bool
}

// NewTracker creates an empty tracker.
func NewTracker(opts Options) *Tracker {
	return &Tracker{
		opts: opts,
		now:  time.Now,
	}
}

// Options returns the tracker's failure handling options.
func (t *Tracker) Options() Options {
	return t.opts
}

// Record appends a successful answer and returns the new entry's handle.
func (t *Tracker) Record(prompt, response string) (string, error) {
	return t.Append(Record{Prompt: prompt, Response: response})
}

// Append adds an entry with feedback unset. A failed record is skipped when
// RecordFailures is off; the returned handle is then empty.
func (t *Tracker) Append(r Record) (string, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if r.Failed && !t.opts.RecordFailures {
		t.mu.Lock()
		t.skipped = true
		t.mu.Unlock()
		return "", nil
	}

	entry := &models.HistoryEntry{
		ID:        uuid.New().String(),
		Prompt:    r.Prompt,
		Response:  r.Response,
		Failed:    r.Failed,
		FileID:    r.FileID,
		FileName:  r.FileName,
		CreatedAt: t.now(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.skipped = false
	t.mu.Unlock()

	return entry.ID, nil
}

// SetFeedback labels the most recent entry. It is a no-op when the history
// is empty. When the latest answer was a failure that was not recorded it
// returns ErrFeedbackNotAllowed rather than label an older entry.
func (t *Tracker) SetFeedback(label models.Feedback) error {
	if err := validateLabel(label); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.skipped {
		return ErrFeedbackNotAllowed
	}
	if len(t.entries) == 0 {
		return nil
	}
	return t.applyFeedback(t.entries[len(t.entries)-1], label)
}

// SetFeedbackFor labels the entry identified by handle.
func (t *Tracker) SetFeedbackFor(handle string, label models.Feedback) error {
	if err := validateLabel(label); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.ID == handle {
			return t.applyFeedback(e, label)
		}
	}
	return fmt.Errorf("%w: %s", ErrEntryNotFound, handle)
}

func (t *Tracker) applyFeedback(e *models.HistoryEntry, label models.Feedback) error {
	if e.Failed && !t.opts.AllowFeedbackOnFailures {
		return ErrFeedbackNotAllowed
	}
	return fireFeedback(e, label)
}

// Clear drops every entry.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.skipped = false
	t.mu.Unlock()
}

// Len returns the number of entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Latest returns a copy of the most recent entry.
func (t *Tracker) Latest() (models.HistoryEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.entries) == 0 {
		return models.HistoryEntry{}, false
	}
	return *t.entries[len(t.entries)-1], true
}

// List returns copies of all entries, most recent first.
func (t *Tracker) List() []models.HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.HistoryEntry, len(t.entries))
	for i, e := range t.entries {
		out[len(t.entries)-1-i] = *e
	}
	return out
}

// SelectPrompt returns the prompt at index in the List order.
func (t *Tracker) SelectPrompt(index int) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.entries)
	if index < 0 || index >= n {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, n)
	}
	return t.entries[n-1-index].Prompt, nil
}

// Label shortens a prompt for display in history lists.
func Label(prompt string) string {
	r := []rune(prompt)
	if len(r) <= LabelLength {
		return prompt
	}
	return string(r[:LabelLength])
}

func validateLabel(label models.Feedback) error {
	if label != models.FeedbackYes && label != models.FeedbackNo {
		return fmt.Errorf("%w: %q", ErrInvalidFeedback, label)
	}
	return nil
}
