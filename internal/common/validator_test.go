package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_CheckStringLength(t *testing.T) {
	v := NewValidator()

	testCases := []struct {
		name  string
		input string
		min   int
		max   int
		want  bool
	}{
		{name: "within range", input: "hello", min: 2, max: 10, want: true},
		{name: "too short", input: "h", min: 2, max: 10, want: false},
		{name: "too long", input: "hello world!", min: 2, max: 10, want: false},
		{name: "multibyte counted as characters", input: "héllo", min: 5, max: 5, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, v.CheckStringLength(tc.input, tc.min, tc.max))
		})
	}
}

func TestValidator_FirstErrorWins(t *testing.T) {
	v := NewValidator()

	v.Check(false, "title", "must be provided")
	v.Check(false, "title", "must be at least 2 characters long")

	assert.False(t, v.Valid())
	assert.Equal(t, "must be provided", v.Errors["title"])
}
