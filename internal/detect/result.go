package detect

// BodyResult is the serialized body detection output. Candidate rows are
// [x, y, score, id]; subset rows are the 18 per-part candidate ids followed by
// the total score and the assigned part count.
type BodyResult struct {
	NumPeople    int          `json:"num_people"`
	NumKeypoints int          `json:"num_keypoints"`
	Candidate    [][4]float64 `json:"candidate"`
	Subset       [][]float64  `json:"subset"`
}

// HandData is one detected hand: 21 keypoints in image coordinates with (0,0)
// placeholders preserved, plus the crop region it was estimated from.
type HandData struct {
	Peaks  [][2]int `json:"peaks"`
	BBox   [3]int   `json:"bbox"` // x, y, size
	IsLeft bool     `json:"is_left"`
}

// HandResult is the serialized hand detection output.
type HandResult struct {
	NumHands  int        `json:"num_hands"`
	HandsData []HandData `json:"hands_data"`
}

// DetectionResults groups the enabled sub-detector outputs. A nil field means
// that detector was not requested.
type DetectionResults struct {
	Body  *BodyResult `json:"body,omitempty"`
	Hands *HandResult `json:"hands,omitempty"`
}

// Result is the full response of one detection call. On failure Success is
// false and Error carries the reason; the remaining fields stay zero.
type Result struct {
	Success          bool              `json:"success"`
	Device           string            `json:"device"`
	Timestamp        float64           `json:"timestamp"`
	ProcessingTime   float64           `json:"processing_time"`
	DetectionResults *DetectionResults `json:"detection_results,omitempty"`
	ResultImage      string            `json:"result_image,omitempty"`
	Error            string            `json:"error,omitempty"`
}
