package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("wrapped cause stays reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "store unavailable")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.Equal(t, "store unavailable: connection refused", err.Error())
	})
}

func TestCodeOf(t *testing.T) {
	t.Run("uncoded error is internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("reserve: %w", New(CodeQuotaExceeded, "over quota"))
		assert.Equal(t, CodeQuotaExceeded, CodeOf(err))
		assert.False(t, HasCode(err, CodeRangeFull))
	})
}
