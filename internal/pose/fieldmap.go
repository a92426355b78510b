package pose

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// FieldMap is a dense channel-major float32 tensor over image coordinates.
// Heatmaps, part affinity fields and normalized network inputs all use it.
type FieldMap struct {
	W, H, C int
	Data    []float32
}

func NewFieldMap(w, h, c int) *FieldMap {
	return &FieldMap{W: w, H: h, C: c, Data: make([]float32, w*h*c)}
}

func (f *FieldMap) At(c, y, x int) float32 {
	return f.Data[(c*f.H+y)*f.W+x]
}

func (f *FieldMap) Set(c, y, x int, v float32) {
	f.Data[(c*f.H+y)*f.W+x] = v
}

// Channel returns the backing slice of one channel plane.
func (f *FieldMap) Channel(c int) []float32 {
	return f.Data[c*f.H*f.W : (c+1)*f.H*f.W]
}

// channelMat copies one channel into a single-precision Mat. The caller owns
// the returned Mat.
func channelMat(f *FieldMap, c int) gocv.Mat {
	m := gocv.NewMatWithSize(f.H, f.W, gocv.MatTypeCV32F)
	ptr, err := m.DataPtrFloat32()
	if err == nil {
		copy(ptr, f.Channel(c))
	}
	return m
}

// matChannel copies a single-precision Mat into the given channel plane.
func matChannel(m gocv.Mat, f *FieldMap, c int) error {
	if m.Rows() != f.H || m.Cols() != f.W {
		return fmt.Errorf("mat %dx%d does not match field %dx%d", m.Cols(), m.Rows(), f.W, f.H)
	}
	ptr, err := m.DataPtrFloat32()
	if err != nil {
		return err
	}
	copy(f.Channel(c), ptr)
	return nil
}

// accumulateResampled upsamples a network output field by the given stride,
// strips the bottom/right padding and resizes it to the original image size,
// adding the result into avg with the given weight.
func accumulateResampled(out, avg *FieldMap, stride, padDown, padRight int, weight float32) error {
	padH := out.H * stride
	padW := out.W * stride
	crop := image.Rect(0, 0, padW-padRight, padH-padDown)

	for c := 0; c < out.C; c++ {
		src := channelMat(out, c)

		up := gocv.NewMat()
		gocv.Resize(src, &up, image.Pt(padW, padH), 0, 0, gocv.InterpolationCubic)
		src.Close()

		region := up.Region(crop)
		cropped := region.Clone()
		region.Close()
		up.Close()

		resized := gocv.NewMat()
		gocv.Resize(cropped, &resized, image.Pt(avg.W, avg.H), 0, 0, gocv.InterpolationCubic)
		cropped.Close()

		ptr, err := resized.DataPtrFloat32()
		if err != nil {
			resized.Close()
			return err
		}
		dst := avg.Channel(c)
		for i, v := range ptr {
			dst[i] += v * weight
		}
		resized.Close()
	}
	return nil
}
