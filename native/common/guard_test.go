package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	view := pauses{"rfq": true}

	err := Guard(view, "rfq")
	require.ErrorIs(t, err, ErrModulePaused)
	var paused *PausedError
	require.True(t, errors.As(err, &paused))
	require.Equal(t, "rfq", paused.Module)
	require.EqualError(t, err, "rfq: module paused")

	require.NoError(t, Guard(view, "oracle"))
	require.NoError(t, Guard(nil, "rfq"))
	require.NoError(t, Guard(view, ""))
}
