package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"ana@example.org", true},
		{"ana.silva+groups@mail.example.org", true},
		{"", false},
		{"ana", false},
		{"ana@localhost", false},
		{"Ana <ana@example.org>", false},
		{"ana@@example.org", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.addr))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ana@example.org", Normalize("  Ana@Example.ORG "))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana Silva", DisplayName("ana.silva@example.org"))
	assert.Equal(t, "Bob", DisplayName("bob@example.org"))
}
