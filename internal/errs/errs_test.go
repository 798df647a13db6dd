package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(KindConflict, "stale write")
	wrapped := fmt.Errorf("upsert bd-1: %w", base)
	require.Equal(t, KindConflict, KindOf(wrapped))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestRetryableOnlyForTransient(t *testing.T) {
	require.True(t, Retryable(New(KindTransient, "timeout")))
	require.False(t, Retryable(New(KindValidation, "bad input")))
}

func TestWithAttachesContext(t *testing.T) {
	e := New(KindNotFound, "issue missing").With("id", "bd-1")
	require.Equal(t, "bd-1", e.Context["id"])
}
