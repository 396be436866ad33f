package lbcfetcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"leboncoin-parser-service/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cause := errors.New("boom")

	transientStatuses := []int{0, 408, 429, 500, 502, 503, 504}
	for _, status := range transientStatuses {
		err := classifyHTTPError(1, status, cause)
		assert.True(t, domain.IsTransient(err), "status %d should be transient", status)
		assert.False(t, domain.IsFatal(err), "status %d should not be fatal", status)
	}

	fatalStatuses := []int{400, 401, 403, 404, 422}
	for _, status := range fatalStatuses {
		err := classifyHTTPError(1, status, cause)
		assert.True(t, domain.IsFatal(err), "status %d should be fatal", status)
		assert.False(t, domain.IsTransient(err), "status %d should not be transient", status)
	}
}

func TestClassifyHTTPErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := classifyHTTPError(3, 0, cause)
	assert.ErrorIs(t, err, cause)
}
