package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyTrainNumber indicates the train number is empty
	ErrEmptyTrainNumber = errors.New("train number cannot be empty")

	// ErrInvalidTrainFormat indicates the train number is not a letter followed by digits
	ErrInvalidTrainFormat = errors.New("train number must be an optional class letter followed by 1 to 4 digits")

	// ErrUnknownTrainClass indicates the leading letter is not a known train class
	ErrUnknownTrainClass = errors.New("train number must start with G, C, D, Z, T, K, Y, S or L")
)

// trainClasses maps the leading letter of a train number to its service class
var trainClasses = map[byte]string{
	'G': "高速动车组",
	'C': "城际动车组",
	'D': "动车组",
	'Z': "直达特快",
	'T': "特快",
	'K': "快速",
	'Y': "旅游列车",
	'S': "市郊列车",
	'L': "临时列车",
}

// trainRegex matches an optional letter followed by digits
var trainRegex = regexp.MustCompile(`^([A-Z]?)(\d{1,4})$`)

// TrainNumberValidator handles train number validation
type TrainNumberValidator struct{}

// NewTrainNumberValidator creates a new train number validator instance
func NewTrainNumberValidator() *TrainNumberValidator {
	return &TrainNumberValidator{}
}

// Validate validates a train number
// Accepts format: G1, g1, "G 1", D312, 6201
// Returns the sanitized train number (upper case, no separators) and error if invalid
func (v *TrainNumberValidator) Validate(trainNo string) (string, error) {
	if strings.TrimSpace(trainNo) == "" {
		return "", ErrEmptyTrainNumber
	}

	sanitized := v.Sanitize(trainNo)

	match := trainRegex.FindStringSubmatch(sanitized)
	if match == nil {
		return "", ErrInvalidTrainFormat
	}

	if match[1] != "" {
		if _, ok := trainClasses[match[1][0]]; !ok {
			return "", ErrUnknownTrainClass
		}
	}

	return sanitized, nil
}

// Sanitize upper-cases the train number and strips common separators
func (v *TrainNumberValidator) Sanitize(trainNo string) string {
	trainNo = strings.ToUpper(trainNo)
	trainNo = strings.ReplaceAll(trainNo, " ", "")
	trainNo = strings.ReplaceAll(trainNo, "-", "")
	trainNo = strings.ReplaceAll(trainNo, "次", "")
	return trainNo
}

// GetClass returns the service class of a train number.
// Numbers without a letter are ordinary trains.
func (v *TrainNumberValidator) GetClass(trainNo string) (string, error) {
	sanitized, err := v.Validate(trainNo)
	if err != nil {
		return "", err
	}
	if class, ok := trainClasses[sanitized[0]]; ok {
		return class, nil
	}
	return "普通列车", nil
}

// IsValid is a convenience method that returns true if the train number is valid
func (v *TrainNumberValidator) IsValid(trainNo string) bool {
	_, err := v.Validate(trainNo)
	return err == nil
}

// MustValidate validates and panics if invalid (use for testing only)
func (v *TrainNumberValidator) MustValidate(trainNo string) string {
	sanitized, err := v.Validate(trainNo)
	if err != nil {
		panic(fmt.Sprintf("invalid train number %s: %v", trainNo, err))
	}
	return sanitized
}
