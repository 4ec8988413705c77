package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	denoiseSigma = 1.1 // roughly a 5x5 Gaussian kernel
	// blockSigma approximates the Gaussian weights of an 11x11 neighborhood.
	blockSigma = 2.0
	thresholdC = 2
)

// Normalize prepares a photo for the local engine: grayscale, denoise,
// adaptive binarization and a 2x2 morphological close. The result is PNG.
func Normalize(data []byte) ([]byte, error) {
	const op = "Normalize"

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, NewError(op, ErrInvalidInput, fmt.Sprintf("cannot decode image: %v", err))
	}

	gray := imaging.Blur(imaging.Grayscale(src), denoiseSigma)
	bin := adaptiveThreshold(gray, imaging.Blur(gray, blockSigma), thresholdC)
	closed := erode(dilate(bin))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, closed, imaging.PNG); err != nil {
		return nil, NewError(op, ErrEngineFailed, fmt.Sprintf("cannot encode image: %v", err))
	}
	return buf.Bytes(), nil
}

// adaptiveThreshold sets a pixel white when it is brighter than its local
// mean minus c, black otherwise.
func adaptiveThreshold(img, mean *image.NRGBA, c int) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := int(img.Pix[y*img.Stride+x*4])
			m := int(mean.Pix[y*mean.Stride+x*4])
			if v > m-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// dilate takes the maximum over the 2x2 neighborhood ending at each pixel.
func dilate(img *image.Gray) *image.Gray {
	return morph(img, -1, func(a, b uint8) bool { return a > b })
}

// erode takes the minimum over the 2x2 neighborhood starting at each pixel,
// so that erode(dilate(img)) does not shift the image.
func erode(img *image.Gray) *image.Gray {
	return morph(img, 1, func(a, b uint8) bool { return a < b })
}

func morph(img *image.Gray, step int, better func(a, b uint8) bool) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			best := img.GrayAt(x, y).Y
			for _, p := range [3]image.Point{{x + step, y}, {x, y + step}, {x + step, y + step}} {
				if !p.In(b) {
					continue
				}
				if v := img.GrayAt(p.X, p.Y).Y; better(v, best) {
					best = v
				}
			}
			out.SetGray(x, y, color.Gray{Y: best})
		}
	}
	return out
}
