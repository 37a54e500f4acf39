package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("SOLATION_TEST_SECRET", "  spaced secret ")
	src := NewSource("SOLATION_TEST_SECRET", "JWT secret")
	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "  spaced secret ", got)

	// Cached after the first read.
	t.Setenv("SOLATION_TEST_SECRET", "rotated")
	got, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "  spaced secret ", got)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("SOLATION_TEST_SECRET", "   ")
	_, err := NewSource("SOLATION_TEST_SECRET", "").Get()
	require.EqualError(t, err, "SOLATION_TEST_SECRET is set but empty")
}
