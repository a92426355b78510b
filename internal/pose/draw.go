package pose

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

const (
	limbThickness = 4
	jointRadius   = 4
)

// DrawBodyPose renders assembled skeletons onto the canvas: colored line
// segments per limb sequence plus joint circles.
func DrawBodyPose(canvas *gocv.Mat, candidate []Peak, people []Person) {
	for k := 0; k < numSeedLimbs; k++ {
		partA, partB := limbSeq[k][0], limbSeq[k][1]
		for _, person := range people {
			ia, ib := person.Slots[partA], person.Slots[partB]
			if ia < 0 || ib < 0 {
				continue
			}
			a, b := candidate[ia], candidate[ib]
			gocv.Line(canvas, image.Pt(a.X, a.Y), image.Pt(b.X, b.Y), partColors[k], limbThickness)
		}
	}

	for part := 0; part < NumBodyParts; part++ {
		for _, person := range people {
			idx := person.Slots[part]
			if idx < 0 {
				continue
			}
			p := candidate[idx]
			gocv.Circle(canvas, image.Pt(p.X, p.Y), jointRadius, partColors[part], -1)
		}
	}
}

// DrawHandPose renders hand skeletons. Edges touching a (0,0) placeholder
// are skipped so undetected keypoints never produce stray lines.
func DrawHandPose(canvas *gocv.Mat, hands [][]image.Point) {
	for _, peaks := range hands {
		if len(peaks) < NumHandParts {
			continue
		}
		for e, edge := range handEdges {
			p1, p2 := peaks[edge[0]], peaks[edge[1]]
			if (p1.X == 0 && p1.Y == 0) || (p2.X == 0 && p2.Y == 0) {
				continue
			}
			c := hsvColor(float64(e) / float64(len(handEdges)))
			gocv.Line(canvas, p1, p2, c, 2)
		}
		for _, p := range peaks {
			if p.X == 0 && p.Y == 0 {
				continue
			}
			gocv.Circle(canvas, p, jointRadius, color.RGBA{R: 255}, -1)
		}
	}
}

// hsvColor maps a hue in [0,1) at full saturation/value to RGB, giving each
// finger edge a distinct color.
func hsvColor(h float64) color.RGBA {
	i := int(math.Floor(h * 6))
	f := h*6 - float64(i)
	q := 1 - f

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = 1, f, 0
	case 1:
		r, g, b = q, 1, 0
	case 2:
		r, g, b = 0, 1, f
	case 3:
		r, g, b = 0, q, 1
	case 4:
		r, g, b = f, 0, 1
	case 5:
		r, g, b = 1, 0, q
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255)}
}
