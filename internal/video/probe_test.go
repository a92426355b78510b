package video

import (
	"math"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97},
		{"25", 25},
		{"0/0", defaultFPS},
		{"", defaultFPS},
		{"abc", defaultFPS},
		{"24/0", defaultFPS},
		{"-30/1", defaultFPS},
	}

	for _, c := range cases {
		got := parseFrameRate(c.in)
		if math.Abs(got-c.want) > 0.01 {
			t.Errorf("parseFrameRate(%q) = %f, want %f", c.in, got, c.want)
		}
	}
}
