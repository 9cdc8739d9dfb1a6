package interview

import (
	"context"
	"fmt"
)

// PausedError reports an interview stopped by the user. The session is saved
// as PAUSED and can be resumed.
type PausedError struct {
	SessionID string
	Err       error
}

func (e *PausedError) Error() string {
	return fmt.Sprintf("interview %s paused", e.SessionID)
}

func (e *PausedError) Unwrap() error {
	if e.Err == nil {
		return context.Canceled
	}
	return e.Err
}

// ResumeHint is the command-line flag that continues this interview.
func (e *PausedError) ResumeHint() string {
	return "--resume " + e.SessionID
}
