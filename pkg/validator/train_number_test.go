package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidTrainNumbers(t *testing.T) {
	validator := NewTrainNumberValidator()

	valid := []struct {
		input    string
		expected string
		name     string
	}{
		{"G1", "G1", "High speed"},
		{"g1", "G1", "Lower case"},
		{" G 1 ", "G1", "With spaces"},
		{"D-312", "D312", "With dash"},
		{"K1234", "K1234", "Four digits"},
		{"Z19次", "Z19", "With suffix"},
		{"6201", "6201", "Ordinary train"},
	}

	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestValidate_InvalidTrainNumbers(t *testing.T) {
	validator := NewTrainNumberValidator()

	invalid := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyTrainNumber, "Empty string"},
		{"   ", ErrEmptyTrainNumber, "Blank"},
		{"G", ErrInvalidTrainFormat, "Letter only"},
		{"G12345", ErrInvalidTrainFormat, "Too many digits"},
		{"GD12", ErrInvalidTrainFormat, "Two letters"},
		{"12G", ErrInvalidTrainFormat, "Letter last"},
		{"X12", ErrUnknownTrainClass, "Unknown class"},
	}

	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.False(t, validator.IsValid(tc.input))
		})
	}
}

func TestGetClass(t *testing.T) {
	validator := NewTrainNumberValidator()

	class, err := validator.GetClass("g7")
	require.NoError(t, err)
	assert.Equal(t, "高速动车组", class)

	class, err = validator.GetClass("6201")
	require.NoError(t, err)
	assert.Equal(t, "普通列车", class)

	_, err = validator.GetClass("X1")
	assert.Error(t, err)
}

func TestMustValidate(t *testing.T) {
	validator := NewTrainNumberValidator()
	assert.Equal(t, "T8", validator.MustValidate("t8"))
	assert.Panics(t, func() { validator.MustValidate("bad") })
}
