package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsNotFound(ErrJobNotFound))
	assert.True(t, IsNotFound(WrapNotFound("audio", errors.New("missing key"))))
	assert.False(t, IsNotFound(ErrInput))

	inputErr := InputErrorf("audio is empty (%d bytes)", 0)
	assert.True(t, IsInput(inputErr))
	assert.Contains(t, inputErr.Error(), "audio is empty (0 bytes)")

	cause := errors.New("connection refused")
	capErr := WrapCapability("narrative", cause)
	assert.True(t, IsCapability(capErr))
	assert.ErrorIs(t, capErr, cause)

	assert.ErrorIs(t, WrapInternal("claim job", cause), ErrInternal)
}

func TestValidationError_Is(t *testing.T) {
	err := error(ValidationError{Field: "owner_id", Message: "is required"})
	assert.True(t, IsValidation(err))
	assert.Equal(t, "owner_id: is required", err.Error())
}
