package pose

import (
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestDrawBodyPose(t *testing.T) {
	canvas := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	candidate := []Peak{
		{X: 20, Y: 20, Score: 0.9, ID: 0},
		{X: 60, Y: 60, Score: 0.9, ID: 1},
	}
	person := Person{Parts: 2}
	for i := range person.Slots {
		person.Slots[i] = -1
	}
	person.Slots[limbSeq[0][0]] = 0
	person.Slots[limbSeq[0][1]] = 1

	DrawBodyPose(&canvas, candidate, []Person{person})

	if nonZeroPixels(canvas) == 0 {
		t.Fatal("nothing drawn on canvas")
	}
}

func TestDrawHandPoseSkipsPlaceholders(t *testing.T) {
	canvas := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	// All keypoints are placeholders, so nothing may be drawn.
	peaks := make([]image.Point, NumHandParts)
	DrawHandPose(&canvas, [][]image.Point{peaks})

	if nonZeroPixels(canvas) != 0 {
		t.Fatal("placeholder keypoints were drawn")
	}

	peaks[0] = image.Pt(30, 30)
	peaks[1] = image.Pt(50, 50)
	DrawHandPose(&canvas, [][]image.Point{peaks})
	if nonZeroPixels(canvas) == 0 {
		t.Fatal("valid keypoints were not drawn")
	}
}

func nonZeroPixels(m gocv.Mat) int {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	return gocv.CountNonZero(gray)
}
