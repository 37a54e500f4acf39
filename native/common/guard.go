package common

import "errors"

// ErrModulePaused matches every PausedError via errors.Is.
var ErrModulePaused = errors.New("module paused")

// PausedError names the module that rejected the call.
type PausedError struct {
	Module string
}

func (e *PausedError) Error() string { return e.Module + ": " + ErrModulePaused.Error() }

func (e *PausedError) Unwrap() error { return ErrModulePaused }

// PauseView exposes the pause switches owned by protocol configuration.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with a *PausedError when module is paused. A nil view or an
// empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return &PausedError{Module: module}
	}
	return nil
}
