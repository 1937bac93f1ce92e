package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints(t *testing.T) {
	tests := []struct {
		name      string
		correct   bool
		remaining int
		timer     int
		want      int
	}{
		{"correct with 10 of 15 seconds left", true, 10, 15, 133},
		{"correct with 5 of 15 seconds left", true, 5, 15, 116},
		{"correct at the buzzer", true, 0, 15, 100},
		{"correct with full timer remaining", true, 15, 15, 150},
		{"incorrect earns nothing", false, 10, 15, 0},
		{"incorrect at full time earns nothing", false, 15, 15, 0},
		{"negative remaining clamps to base", true, -3, 15, 100},
		{"remaining above timer clamps to max bonus", true, 20, 15, 150},
		{"zero timer degrades to base", true, 5, 0, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Points(tc.correct, tc.remaining, tc.timer))
		})
	}
}

func TestPointsNeverNegative(t *testing.T) {
	for remaining := -5; remaining <= 20; remaining++ {
		assert.GreaterOrEqual(t, Points(true, remaining, 15), 0)
		assert.Equal(t, 0, Points(false, remaining, 15))
	}
}
