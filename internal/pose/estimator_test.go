package pose

import (
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func TestPrepareInput(t *testing.T) {
	img := gocv.NewMatWithSize(367, 489, gocv.MatTypeCV8UC3)
	defer img.Close()

	input, padDown, padRight, err := prepareInput(img, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	if input.C != 3 {
		t.Fatalf("expected 3 channels, got %d", input.C)
	}
	if input.H%Stride != 0 || input.W%Stride != 0 {
		t.Errorf("padded size %dx%d is not a stride multiple", input.W, input.H)
	}
	if padDown < 0 || padDown >= Stride || padRight < 0 || padRight >= Stride {
		t.Errorf("padding %d/%d out of range", padDown, padRight)
	}

	// Scale 0.5 targets half the box size in height.
	wantH := int(0.5 * BoxSize)
	if input.H < wantH || input.H >= wantH+Stride {
		t.Errorf("input height %d, expected [%d,%d)", input.H, wantH, wantH+Stride)
	}

	// A zero image normalizes to the constant -0.5; the border padding uses
	// pixel value 128, which normalizes to exactly 0.
	for c := 0; c < input.C; c++ {
		for y := 0; y < input.H; y++ {
			for x := 0; x < input.W; x++ {
				want := float32(-0.5)
				if y >= input.H-padDown || x >= input.W-padRight {
					want = 0
				}
				if v := input.At(c, y, x); v != want {
					t.Fatalf("pixel (%d,%d,%d) normalized to %f, expected %f", c, y, x, v, want)
				}
			}
		}
	}
}

func TestAccumulateResampledUniform(t *testing.T) {
	// A constant output plane must stay constant through the upsample,
	// crop and resize chain.
	out := NewFieldMap(10, 8, 2)
	for i := range out.Channel(1) {
		out.Channel(1)[i] = 0.6
	}

	avg := NewFieldMap(73, 57, 2)
	if err := accumulateResampled(out, avg, Stride, 4, 6, 0.5); err != nil {
		t.Fatal(err)
	}

	for i, v := range avg.Channel(0) {
		if v != 0 {
			t.Fatalf("channel 0 index %d is %f, expected 0", i, v)
		}
	}
	for i, v := range avg.Channel(1) {
		if math.Abs(float64(v)-0.3) > 1e-3 {
			t.Fatalf("channel 1 index %d is %f, expected 0.3", i, v)
		}
	}
}

func TestAccumulateResampledWeights(t *testing.T) {
	out := NewFieldMap(6, 6, 1)
	for i := range out.Channel(0) {
		out.Channel(0)[i] = 1
	}

	avg := NewFieldMap(48, 48, 1)
	for s := 0; s < 4; s++ {
		if err := accumulateResampled(out, avg, Stride, 0, 0, 0.25); err != nil {
			t.Fatal(err)
		}
	}

	if v := float64(avg.At(0, 24, 24)); math.Abs(v-1) > 1e-3 {
		t.Fatalf("accumulated center value %f, expected 1", v)
	}
}
