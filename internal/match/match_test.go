package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		guess     string
		reference string
		want      bool
	}{
		{"lebron", "LeBron James", true},
		{"james", "LeBron James", true},
		{"LeBron James", "LeBron James", true},
		{"xyz", "LeBron James", false},
		{"  lebron  ", "LeBron James", true},
		{"bron", "LeBron James", true},   // substring, length >= 4
		{"bro", "LeBron James", false},   // substring too short
		{"ron j", "LeBron James", true},  // substring across name parts
		{"giannis", "Giannis Antetokounmpo", true},
		{"antetokounmpo", "Giannis Antetokounmpo", true},
		{"jokic", "Nikola Jokic", true},
		{"harden", "James Harden", true},
		{"kevin durant", "Kevin Durant", true},
		{"curry", "Kevin Durant", false},
		{"", "LeBron James", false},
		{"   ", "LeBron James", false},
		{"lebron", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.guess+"/"+tc.reference, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(tc.guess, tc.reference))
		})
	}
}
