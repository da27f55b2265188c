package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingKeyForPattern(t *testing.T) {
	cases := []struct {
		pattern string
		want    string
	}{
		{">", "#"},
		{"appointment.>", "appointment.#"},
		{"appointment.*", "appointment.*"},
		{"appointment.*.response", "appointment.*.response"},
		{"appointment.created", "appointment.created"},
		{"patient.>", "patient.#"},
	}

	for _, tc := range cases {
		t.Run(tc.pattern, func(t *testing.T) {
			assert.Equal(t, tc.want, BindingKeyForPattern(tc.pattern))
		})
	}
}
