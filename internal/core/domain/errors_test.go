package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransientAndFatalClassification(t *testing.T) {
	cause := errors.New("status 503")
	transient := &TransientError{Op: "search page 2", Err: cause}
	fatal := &FatalError{Op: "search page 2", Err: errors.New("status 400")}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))

	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	cause := errors.New("timeout")
	wrapped := fmt.Errorf("page 3 failed after 3 attempts: %w", &TransientError{Op: "search", Err: cause})

	assert.True(t, IsTransient(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}
