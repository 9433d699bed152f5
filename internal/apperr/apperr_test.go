package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(Validation("bad input")))
	assert.Equal(t, CodeAccountNotFound, CodeOf(AccountNotFound("1000")))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))

	// Код виден и через обертку.
	wrapped := fmt.Errorf("handler: %w", NotFound("invoice"))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestRetryableAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage(cause)

	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)

	assert.False(t, IsRetryable(Validation("bad input")))
	assert.False(t, IsRetryable(errors.New("plain")))

	conflict := Conflict("sequence contention", cause)
	assert.True(t, IsRetryable(conflict))
	assert.Equal(t, CodeConcurrencyConflict, CodeOf(conflict))
}
