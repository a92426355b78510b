package pose

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	// BoxSize is the network input height the image is scaled against.
	BoxSize = 368
	// Stride is the network downsampling factor.
	Stride = 8
	// PadValue fills the bottom/right padding added to reach a stride multiple.
	PadValue = 128

	// bodyPeakThreshold is the minimum averaged heatmap response for a body peak.
	bodyPeakThreshold = 0.1
	// handPeakThreshold is the minimum smoothed response for a hand keypoint.
	handPeakThreshold = 0.05

	blurKernel = 7
	blurSigma  = 3.0
)

// Peak is one detected local-maximum response of a heatmap channel. The ID is
// globally unique across all part channels of one detection call.
type Peak struct {
	X, Y  int
	Score float32
	ID    int
}

// smoothChannel applies the Gaussian blur used before maxima extraction.
func smoothChannel(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Pt(blurKernel, blurKernel), blurSigma, blurSigma, gocv.BorderDefault)
	return dst
}

// ExtractBodyPeaks finds strict local maxima per body part channel of the
// averaged heatmap. Ids are assigned sequentially in channel order, scores are
// read from the unsmoothed map.
func ExtractBodyPeaks(heat *FieldMap) [][]Peak {
	allPeaks := make([][]Peak, NumBodyParts)
	counter := 0

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	for part := 0; part < NumBodyParts; part++ {
		src := channelMat(heat, part)
		smoothed := smoothChannel(src)
		src.Close()

		// A 3x3 dilation is a sliding maximum: a pixel equal to its
		// dilation is a local maximum of its neighborhood.
		dilated := gocv.NewMat()
		gocv.Dilate(smoothed, &dilated, kernel)

		sm, _ := smoothed.DataPtrFloat32()
		dl, _ := dilated.DataPtrFloat32()

		var peaks []Peak
		plane := heat.Channel(part)
		for y := 0; y < heat.H; y++ {
			row := y * heat.W
			for x := 0; x < heat.W; x++ {
				v := sm[row+x]
				if v > bodyPeakThreshold && v == dl[row+x] {
					peaks = append(peaks, Peak{
						X:     x,
						Y:     y,
						Score: plane[row+x],
						ID:    counter + len(peaks),
					})
				}
			}
		}
		counter += len(peaks)
		allPeaks[part] = peaks

		smoothed.Close()
		dilated.Close()
	}
	return allPeaks
}

// ExtractHandPeaks takes the single global maximum of each smoothed hand
// channel. Channels whose maximum does not clear the threshold yield the
// (0,0) placeholder: hand channels assume exactly one occurrence per part, so
// a sub-threshold coordinate would be noise, not a keypoint.
func ExtractHandPeaks(heat *FieldMap) []image.Point {
	peaks := make([]image.Point, NumHandParts)
	for part := 0; part < NumHandParts; part++ {
		src := channelMat(heat, part)
		smoothed := smoothChannel(src)
		src.Close()

		sm, _ := smoothed.DataPtrFloat32()
		maxVal := float32(0)
		maxX, maxY := 0, 0
		for y := 0; y < heat.H; y++ {
			row := y * heat.W
			for x := 0; x < heat.W; x++ {
				if sm[row+x] > maxVal {
					maxVal = sm[row+x]
					maxX, maxY = x, y
				}
			}
		}
		smoothed.Close()

		if maxVal > handPeakThreshold {
			peaks[part] = image.Pt(maxX, maxY)
		}
	}
	return peaks
}
