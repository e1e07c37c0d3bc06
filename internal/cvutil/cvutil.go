// Package cvutil holds the image.Image <-> gocv.Mat conversion helpers
// shared by the hidden-text, frequency, and structural modules, so each
// module works with a gocv.Mat without duplicating the RGBA-to-Mat
// plumbing.
package cvutil

import (
	"image"

	"gocv.io/x/gocv"
)

// RGBAToMat builds a BGR gocv.Mat from a standard library *image.RGBA,
// matching OpenCV's default channel order.
func RGBAToMat(img *image.RGBA) (gocv.Mat, error) {
	rgba, err := gocv.NewMatFromBytes(img.Bounds().Dy(), img.Bounds().Dx(), gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}

// ChannelToMat isolates a single RGBA channel (0=R,1=G,2=B) as an 8-bit
// single-channel Mat, used by the hidden-text module's per-channel OCR.
func ChannelToMat(img *image.RGBA, channel int) (gocv.Mat, error) {
	bgr, err := RGBAToMat(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer bgr.Close()

	channels := gocv.Split(bgr)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	// Split on a BGR Mat returns channels in B,G,R order; map RGB index to it.
	bgrIndex := map[int]int{0: 2, 1: 1, 2: 0}[channel]
	out := gocv.NewMat()
	channels[bgrIndex].CopyTo(&out)
	return out, nil
}

// MatToGray converts a BGR Mat to single-channel grayscale.
func MatToGray(bgr gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray
}

// MatToImage renders a Mat back into a standard library image.Image for
// handing to an OCRAdapter, which speaks image.Image rather than gocv.Mat.
func MatToImage(mat gocv.Mat) (image.Image, error) {
	return mat.ToImage()
}
