package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("page", 0, IntRange(1, 1<<20)).
		Field("limit", 500, IntRange(1, 100)).
		Field("status", "archived", OneOf("pending", "processing", "completed", "failed")).
		Field("id", "not-a-uuid", UUID).
		Field("filename", "", Required)

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 5)

	err := v.Error()
	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "page", ve.Field)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, v.ErrorMessage(), "must be between 1 and 100")
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().
		Field("page", 1, IntRange(1, 10)).
		Field("status", "", OneOf("pending")).
		Field("filename", "msa.pdf", Required, MaxLength(255))
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.NoError(t, ValidateAndReturnError(v))
}
