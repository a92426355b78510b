package pose

import "math"

const (
	// wristExtendRatio pushes the region center past the wrist along the
	// elbow-to-wrist direction.
	wristExtendRatio = 0.33
	// regionScale and shoulderScale size the square region from the arm
	// segment lengths.
	regionScale   = 1.5
	shoulderScale = 0.9
	// minRegionSize discards regions too small to carry a usable hand crop.
	minRegionSize = 20
)

// HandRegion is a square crop candidate around one detected wrist.
type HandRegion struct {
	X, Y, Size int
	IsLeft     bool
}

// DetectHandRegions derives hand bounding boxes from assembled skeletons. A
// side contributes a region only when its shoulder, elbow and wrist peaks are
// all present; missing peaks silently skip that side.
func DetectHandRegions(candidate []Peak, people []Person, imgW, imgH int) []HandRegion {
	var regions []HandRegion

	type arm struct {
		shoulder, elbow, wrist int
		isLeft                 bool
	}

	for _, person := range people {
		arms := []arm{
			{PartRShoulder, PartRElbow, PartRWrist, false},
			{PartLShoulder, PartLElbow, PartLWrist, true},
		}
		for _, a := range arms {
			si := person.Slots[a.shoulder]
			ei := person.Slots[a.elbow]
			wi := person.Slots[a.wrist]
			if si < 0 || ei < 0 || wi < 0 {
				continue
			}
			shoulder := candidate[si]
			elbow := candidate[ei]
			wrist := candidate[wi]

			cx := float64(wrist.X) + wristExtendRatio*float64(wrist.X-elbow.X)
			cy := float64(wrist.Y) + wristExtendRatio*float64(wrist.Y-elbow.Y)

			wristElbow := math.Hypot(float64(wrist.X-elbow.X), float64(wrist.Y-elbow.Y))
			elbowShoulder := math.Hypot(float64(elbow.X-shoulder.X), float64(elbow.Y-shoulder.Y))
			size := regionScale * math.Max(wristElbow, shoulderScale*elbowShoulder)

			x := cx - size/2
			y := cy - size/2
			if x < 0 {
				x = 0
			}
			if y < 0 {
				y = 0
			}
			if x+size > float64(imgW) {
				size = float64(imgW) - x
			}
			if y+size > float64(imgH) {
				size = float64(imgH) - y
			}
			if size < minRegionSize {
				continue
			}
			regions = append(regions, HandRegion{
				X:      int(x),
				Y:      int(y),
				Size:   int(size),
				IsLeft: a.isLeft,
			})
		}
	}
	return regions
}
