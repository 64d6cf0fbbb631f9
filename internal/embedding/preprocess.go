package embedding

import (
	"image"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics used by the feature extractor's training recipe.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// preprocess resizes the shorter side of img to resizeSize, center-crops a
// cropSize square, and returns the pixels as normalized NCHW float32 data
// (length 3*cropSize*cropSize) ready to feed the model.
func preprocess(img image.Image, resizeSize, cropSize int) []float32 {
	scaled := resizeShorterSide(img, resizeSize)
	cropped := centerCrop(scaled, cropSize)

	b := cropped.Bounds()
	plane := cropSize * cropSize
	data := make([]float32, 3*plane)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := cropped.At(x, y).RGBA()
			// RGBA returns 16-bit channels; scale to [0,1] then normalize.
			data[i] = (float32(r)/65535.0 - imagenetMean[0]) / imagenetStd[0]
			data[plane+i] = (float32(g)/65535.0 - imagenetMean[1]) / imagenetStd[1]
			data[2*plane+i] = (float32(bl)/65535.0 - imagenetMean[2]) / imagenetStd[2]
			i++
		}
	}
	return data
}

// resizeShorterSide scales img so its shorter side equals size, preserving
// aspect ratio.
func resizeShorterSide(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewRGBA(image.Rect(0, 0, size, size))
	}
	var dw, dh int
	if w < h {
		dw = size
		dh = h * size / w
	} else {
		dh = size
		dw = w * size / h
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// centerCrop returns the centered size x size region of img. Images smaller
// than the crop are padded implicitly by clamping the crop window.
func centerCrop(img image.Image, size int) image.Image {
	b := img.Bounds()
	x0 := b.Min.X + (b.Dx()-size)/2
	y0 := b.Min.Y + (b.Dy()-size)/2
	if x0 < b.Min.X {
		x0 = b.Min.X
	}
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Copy(dst, image.Point{}, img, image.Rect(x0, y0, x0+size, y0+size), draw.Over, nil)
	return dst
}
