package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneStillMatchesOriginal(t *testing.T) {
	clone := Clone(ErrWindowClosed, "Attendance can only be marked on event day")
	assert.True(t, errors.Is(clone, ErrWindowClosed))
	assert.False(t, errors.Is(clone, ErrAlreadyMarked))
	assert.Equal(t, http.StatusBadRequest, clone.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)

	wrapped := fmt.Errorf("register: %w", ErrAlreadyRegistered)
	assert.Equal(t, ErrAlreadyRegistered.Code, FromError(wrapped).Code)
}
