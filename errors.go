package flame

import (
	"errors"
	"fmt"
)

var (
	// ErrHookBusy is returned by Start when another recorder holds the hook.
	ErrHookBusy = errors.New("call hook is installed by another session")

	// ErrHookNotInstalled is returned by Stop when the hook isn't held by the
	// stopping session.
	ErrHookNotInstalled = errors.New("call hook is not installed by this session")

	// ErrActive is returned by Start when the recorder is already active.
	ErrActive = errors.New("session already active")

	// ErrNotActive is returned by Stop when the recorder isn't active.
	ErrNotActive = errors.New("session not active")

	// ErrNoSession is returned by exports from a recorder that was never
	// started.
	ErrNoSession = errors.New("no session recorded")
)

// HookError is returned when the global call hook can't be installed or
// uninstalled. The session state is unchanged.
type HookError struct {
	Op  string // install, uninstall
	Err error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("%s call hook: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *HookError) Unwrap() error {
	return e.Err
}
