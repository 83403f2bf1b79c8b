package common

import (
	"fmt"
	"unicode/utf8"
)

type ValidationError struct {
	Errors map[string]string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %+v", e.Errors)
}

// Is lets callers branch on client-side and server-side validation failures alike.
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type Validator struct {
	Errors map[string]string
}

func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(field, message string) {
	if _, ok := v.Errors[field]; !ok {
		v.Errors[field] = message
	}
}

func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// CheckStringLength counts characters, not bytes.
func (v *Validator) CheckStringLength(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

func (v *Validator) CheckMinLength(s string, min int) bool {
	return utf8.RuneCountInString(s) >= min
}

func (v *Validator) CheckMaxLength(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}

func (v *Validator) ValidationError() error {
	return ValidationError{Errors: v.Errors}
}
