// Package barcode implements core.BarcodeDecoder for 1D barcodes using
// github.com/makiuchi-d/gozxing. QR decoding lives in the structural
// module itself via gocv; gozxing covers the 1D formats gocv has no
// binding for.
package barcode

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"imageguard/internal/core"
)

// Decoder implements core.BarcodeDecoder over a multi-format 1D reader.
type Decoder struct {
	reader gozxing.Reader
}

// New builds a Decoder trying every 1D barcode format gozxing supports.
func New() *Decoder {
	return &Decoder{reader: oned.NewMultiFormatOneDReader(nil)}
}

var _ core.BarcodeDecoder = (*Decoder)(nil)

// Decode returns the first 1D barcode found in img, as a slice of at
// most one result. A failed decode, including "no barcode present", is
// not an error — it simply yields an empty slice.
func (d *Decoder) Decode(img image.Image) ([]core.BarcodeResult, error) {
	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}
	result, err := d.reader.Decode(bitmap, nil)
	if err != nil {
		if _, ok := err.(gozxing.NotFoundException); ok {
			return nil, nil
		}
		return nil, nil
	}
	if result == nil {
		return nil, nil
	}
	return []core.BarcodeResult{{
		Type:    result.GetBarcodeFormat().String(),
		Content: result.GetText(),
	}}, nil
}
