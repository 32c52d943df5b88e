package validator

import (
	"regexp"
	"slices"
	"unicode/utf8"
)

// OrderCodeRX matches order and line codes as they are typed into the order
// sheets, e.g. "MC25-0-0001" or "DH 12/05".
var OrderCodeRX = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} ._/\-]*$`)

// MaxCodeLength bounds order codes accepted from clients.
const MaxCodeLength = 100

// Validator struct to hold validation errors.
type Validator struct {
	Errors map[string]string
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		Errors: make(map[string]string),
	}
}

// IsEmpty checks if there are no validation errors.
func (v *Validator) IsEmpty() bool {
	return len(v.Errors) == 0
}

// AddErrors adds a new error message for a given key if it doesn't already exist.
func (v *Validator) AddErrors(key string, message string) {
	_, exists := v.Errors[key]
	if !exists {
		v.Errors[key] = message
	}
}

// Check adds an error message for a key if the condition is false.
func (v *Validator) Check(ok bool, key string, message string) {
	if !ok {
		v.AddErrors(key, message)
	}
}

// Matches checks if the value matches the given regular expression.
func (v *Validator) Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// Permitted reports whether value is one of permittedValues.
func (v *Validator) Permitted(value string, permittedValues ...string) bool {
	return slices.Contains(permittedValues, value)
}

// MaxRunes reports whether value has at most n characters.
func (v *Validator) MaxRunes(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}

// CheckOrderCode records an error under key when code is too long or has
// characters that never appear in order codes. Empty codes are left to the caller.
func (v *Validator) CheckOrderCode(key, code string) {
	if code == "" {
		return
	}
	v.Check(v.MaxRunes(code, MaxCodeLength), key, "must not be more than 100 characters long")
	v.Check(v.Matches(code, OrderCodeRX), key, "contains invalid characters")
}
