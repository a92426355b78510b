package pose

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// BodyNet maps a normalized BGR input tensor to a part affinity field (38
// channels) and a part heatmap (19 channels), both at 1/Stride resolution.
// Implementations are not assumed to be safe for concurrent calls.
type BodyNet interface {
	Forward(ctx context.Context, input *FieldMap) (paf, heatmap *FieldMap, err error)
}

// HandNet maps a normalized BGR input tensor to a 22-channel hand keypoint
// heatmap at 1/Stride resolution.
type HandNet interface {
	Forward(ctx context.Context, input *FieldMap) (heatmap *FieldMap, err error)
}

var (
	bodyScales = []float64{0.5}
	handScales = []float64{0.5, 1.0, 1.5, 2.0}
)

// BodyEstimator runs the body network over the multi-scale search set and
// turns the averaged outputs into assembled skeletons.
type BodyEstimator struct {
	net    BodyNet
	scales []float64
}

func NewBodyEstimator(net BodyNet) *BodyEstimator {
	return &BodyEstimator{net: net, scales: bodyScales}
}

// Estimate returns the flattened candidate peak table and the assembled
// person table for a BGR image.
func (e *BodyEstimator) Estimate(ctx context.Context, img gocv.Mat) ([]Peak, []Person, error) {
	h, w := img.Rows(), img.Cols()
	heatAvg := NewFieldMap(w, h, NumBodyParts+1)
	pafAvg := NewFieldMap(w, h, 2*NumLimbs)

	weight := float32(1.0 / float64(len(e.scales)))
	for _, scale := range e.scales {
		input, padDown, padRight, err := prepareInput(img, scale)
		if err != nil {
			return nil, nil, err
		}
		paf, heat, err := e.net.Forward(ctx, input)
		if err != nil {
			return nil, nil, fmt.Errorf("body net forward: %w", err)
		}
		if err := accumulateResampled(heat, heatAvg, Stride, padDown, padRight, weight); err != nil {
			return nil, nil, err
		}
		if err := accumulateResampled(paf, pafAvg, Stride, padDown, padRight, weight); err != nil {
			return nil, nil, err
		}
	}

	allPeaks := ExtractBodyPeaks(heatAvg)
	candidate, people := AssemblePeople(allPeaks, pafAvg, h)
	return candidate, people, nil
}

// HandEstimator runs the hand network over its scale search set and extracts
// the 21 hand keypoints from the averaged heatmap.
type HandEstimator struct {
	net    HandNet
	scales []float64
}

func NewHandEstimator(net HandNet) *HandEstimator {
	return &HandEstimator{net: net, scales: handScales}
}

// Estimate returns the 21 hand keypoints of a BGR crop, with (0,0)
// placeholders for channels below threshold.
func (e *HandEstimator) Estimate(ctx context.Context, img gocv.Mat) ([]image.Point, error) {
	h, w := img.Rows(), img.Cols()
	heatAvg := NewFieldMap(w, h, NumHandParts+1)

	weight := float32(1.0 / float64(len(e.scales)))
	for _, scale := range e.scales {
		input, padDown, padRight, err := prepareInput(img, scale)
		if err != nil {
			return nil, err
		}
		heat, err := e.net.Forward(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("hand net forward: %w", err)
		}
		if err := accumulateResampled(heat, heatAvg, Stride, padDown, padRight, weight); err != nil {
			return nil, err
		}
	}

	return ExtractHandPeaks(heatAvg), nil
}

// prepareInput resizes the image so its height is BoxSize*scale, pads the
// bottom/right edges to the next stride multiple and normalizes pixels to
// [-0.5, 0.5).
func prepareInput(img gocv.Mat, scale float64) (*FieldMap, int, int, error) {
	mult := scale * BoxSize / float64(img.Rows())

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(0, 0), mult, mult, gocv.InterpolationCubic)
	defer resized.Close()

	padDown := (Stride - resized.Rows()%Stride) % Stride
	padRight := (Stride - resized.Cols()%Stride) % Stride

	padded := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &padded, 0, padDown, 0, padRight, gocv.BorderConstant,
		color.RGBA{R: PadValue, G: PadValue, B: PadValue})
	defer padded.Close()

	ph, pw := padded.Rows(), padded.Cols()
	data := padded.ToBytes()
	if len(data) != ph*pw*3 {
		return nil, 0, 0, fmt.Errorf("unexpected frame buffer size %d for %dx%d", len(data), pw, ph)
	}

	input := NewFieldMap(pw, ph, 3)
	for c := 0; c < 3; c++ {
		plane := input.Channel(c)
		for i := 0; i < ph*pw; i++ {
			plane[i] = float32(data[i*3+c])/256.0 - 0.5
		}
	}
	return input, padDown, padRight, nil
}
