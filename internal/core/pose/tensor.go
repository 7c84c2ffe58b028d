package pose

import (
	"image"

	"golang.org/x/image/draw"
)

// RTMPose-Normalisierung (ImageNet-Statistik in 0..255)
var (
	meanRGB = [3]float32{123.675, 116.28, 103.53}
	stdRGB  = [3]float32{58.395, 57.12, 57.375}
)

// Tensor ist ein dichter float32-Tensor im NCHW-Layout
type Tensor struct {
	Shape [4]int // N, C, H, W
	Data  []float32
}

// Preprocess skaliert den Frame bilinear auf width×height und legt ihn als
// normalisierten RGB-Tensor [1, 3, height, width] ab.
func Preprocess(img image.Image, width, height int) Tensor {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := width * height
	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			i := y*width + x
			for c := 0; c < 3; c++ {
				data[c*plane+i] = (float32(px[c]) - meanRGB[c]) / stdRGB[c]
			}
		}
	}

	return Tensor{Shape: [4]int{1, 3, height, width}, Data: data}
}
