package pose

import "image/color"

// The 18 body part channels, in heatmap channel order.
const (
	PartNose = iota
	PartNeck
	PartRShoulder
	PartRElbow
	PartRWrist
	PartLShoulder
	PartLElbow
	PartLWrist
	PartRHip
	PartRKnee
	PartRAnkle
	PartLHip
	PartLKnee
	PartLAnkle
	PartREye
	PartLEye
	PartREar
	PartLEar
)

const (
	// NumBodyParts is the number of body part channels.
	NumBodyParts = 18
	// NumHandParts is the number of hand keypoint channels.
	NumHandParts = 21
	// NumLimbs is the number of limb sequences in the skeleton topology.
	NumLimbs = 19
	// numSeedLimbs is the number of leading limb sequences allowed to seed a
	// new person record; the trailing ear-to-shoulder limbs only refine
	// existing ones.
	numSeedLimbs = 17
)

// limbSeq is the fixed skeleton topology: part-channel index pairs for each
// limb, processed in this order during person assembly. The order is fixed by
// the model output layout: limbSeq[k] must stay aligned with pafIdx[k].
var limbSeq = [NumLimbs][2]int{
	{PartNeck, PartRShoulder}, {PartNeck, PartLShoulder},
	{PartRShoulder, PartRElbow}, {PartRElbow, PartRWrist},
	{PartLShoulder, PartLElbow}, {PartLElbow, PartLWrist},
	{PartNeck, PartRHip}, {PartRHip, PartRKnee}, {PartRKnee, PartRAnkle},
	{PartNeck, PartLHip}, {PartLHip, PartLKnee}, {PartLKnee, PartLAnkle},
	{PartNeck, PartNose}, {PartNose, PartREye}, {PartREye, PartREar},
	{PartNose, PartLEye}, {PartLEye, PartLEar},
	{PartRShoulder, PartREar}, {PartLShoulder, PartLEar},
}

// pafIdx maps each limb to the x/y vector component channels in the
// 38-channel part affinity field tensor, element-wise parallel to limbSeq.
var pafIdx = [NumLimbs][2]int{
	{12, 13}, {20, 21}, {14, 15}, {16, 17}, {22, 23}, {24, 25},
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8, 9}, {10, 11},
	{28, 29}, {30, 31}, {34, 35}, {32, 33}, {36, 37},
	{18, 19}, {26, 27},
}

// partColors is the fixed palette used for skeleton rendering, indexed by
// limb sequence (for edges) and part channel (for joints).
var partColors = [NumBodyParts]color.RGBA{
	{255, 0, 0, 0}, {255, 85, 0, 0}, {255, 170, 0, 0}, {255, 255, 0, 0},
	{170, 255, 0, 0}, {85, 255, 0, 0}, {0, 255, 0, 0}, {0, 255, 85, 0},
	{0, 255, 170, 0}, {0, 255, 255, 0}, {0, 170, 255, 0}, {0, 85, 255, 0},
	{0, 0, 255, 0}, {85, 0, 255, 0}, {170, 0, 255, 0}, {255, 0, 255, 0},
	{255, 0, 170, 0}, {255, 0, 85, 0},
}

// handEdges is the finger connection table for the 21 hand keypoints.
var handEdges = [20][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{0, 9}, {9, 10}, {10, 11}, {11, 12},
	{0, 13}, {13, 14}, {14, 15}, {15, 16},
	{0, 17}, {17, 18}, {18, 19}, {19, 20},
}
