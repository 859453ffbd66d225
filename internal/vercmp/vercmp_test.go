package vercmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"equal", "1.2.3", "1.2.3", 0},
		{"numeric not lexicographic", "1.9", "1.10", -1},
		{"patch release greater", "1.10.1", "1.10", 1},
		{"zero padding", "1.10", "1.10.0", 0},
		{"longer wins on extra component", "1.2.3", "1.2", 1},
		{"major difference", "2.0", "1.99.99", 1},
		{"whitespace tolerated", " 1.21.2 ", "1.21.2", 0},
		{"beta suffix compares by leading digits", "1.18-beta1", "1.18", 0},
		{"non numeric component counts as zero", "1.x", "1.0", 0},
		{"empty versions equal", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast("1.10", "1.9"))
	assert.True(t, AtLeast("1.10", "1.10.0"))
	assert.False(t, AtLeast("1.9", "1.10"))
	assert.True(t, AtLeast("1.21.2", "1.18"))
}

func TestFromToolOutput(t *testing.T) {
	assert.Equal(t, "1.21.2", FromToolOutput("Kerberos 5 release 1.21.2\n"))
	assert.Equal(t, "7.8.0", FromToolOutput("heimdal 7.8.0"))
	assert.Equal(t, "", FromToolOutput("   "))
}
