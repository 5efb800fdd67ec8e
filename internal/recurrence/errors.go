package recurrence

import (
	"errors"
	"fmt"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

var (
	// ErrInvalidPattern matches every *InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	// ErrInvalidRange matches every *InvalidRangeError.
	ErrInvalidRange = errors.New("invalid date range")
)

// InvalidPatternError reports a recurrence pattern that lacks the fields its
// frequency needs or carries out-of-range values.
type InvalidPatternError struct {
	Frequency model.Frequency
	Reason    string
}

func (e *InvalidPatternError) Error() string {
	if e.Frequency == "" {
		return fmt.Sprintf("invalid recurrence pattern: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s recurrence pattern: %s", e.Frequency, e.Reason)
}

func (e *InvalidPatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

// InvalidRangeError reports an evaluation window whose end precedes its start.
type InvalidRangeError struct {
	Start calendar.Date
	End   calendar.Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: end %s is before start %s", e.End, e.Start)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

func patternErr(freq model.Frequency, format string, args ...any) error {
	return &InvalidPatternError{Frequency: freq, Reason: fmt.Sprintf(format, args...)}
}
