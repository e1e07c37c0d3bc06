// Package preprocess validates, loads, and normalizes an input image
// into the core.Image artifact every detection module consumes:
// magic-byte validation against the extension, size and dimension
// limits, EXIF orientation, RGB conversion, and a bilinear resize to
// the configured bound. The byte-size and magic-byte checks run before
// any decoding; the dimension limit is checked on the decoded image.
package preprocess

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"imageguard/internal/core"
)

// Options configures a single preprocessing invocation.
type Options struct {
	MaxBytes      int64
	MaxDimension  int
	ValidateMagic bool
	TargetRes     int
}

type magicSignature struct {
	bytes  []byte
	format string
}

var magicBytesByFormat = map[string][]magicSignature{
	"JPEG": {
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "JPEG"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xE1}, "JPEG"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xE2}, "JPEG"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xDB}, "JPEG"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xEE}, "JPEG"},
		{[]byte{0xFF, 0xD8, 0xFF}, "JPEG"},
	},
	"PNG": {{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "PNG"}},
	"GIF": {
		{[]byte("GIF87a"), "GIF"},
		{[]byte("GIF89a"), "GIF"},
	},
	"BMP":  {{[]byte("BM"), "BMP"}},
	"TIFF": {{[]byte{'I', 'I', '*', 0x00}, "TIFF"}, {[]byte{'M', 'M', 0x00, '*'}, "TIFF"}},
}

var extensionToFormat = map[string]string{
	".jpg": "JPEG", ".jpeg": "JPEG",
	".png": "PNG",
	".gif": "GIF",
	".bmp": "BMP",
	".webp": "WEBP",
	".tiff": "TIFF", ".tif": "TIFF",
}

// detectFormatFromMagic returns the format implied by the first bytes of
// a file, or "" if none of the known signatures match.
func detectFormatFromMagic(header []byte) string {
	if len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")) {
		return "WEBP"
	}
	for format, sigs := range magicBytesByFormat {
		for _, sig := range sigs {
			if bytes.HasPrefix(header, sig.bytes) {
				return format
			}
		}
	}
	return ""
}

// validateMagicBytes checks the file's first 12 bytes against the
// format implied by its extension. Unknown extensions skip validation.
func validateMagicBytes(path string) (ok bool, detected, expected string, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	expected, known := extensionToFormat[ext]
	if !known {
		return true, "", "", nil
	}

	f, ferr := os.Open(path)
	if ferr != nil {
		return false, "", expected, ferr
	}
	defer f.Close()

	header := make([]byte, 12)
	n, _ := io.ReadFull(f, header)
	header = header[:n]
	if n < 2 {
		return false, "", expected, nil
	}

	if expected == "WEBP" {
		if len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")) {
			return true, "WEBP", expected, nil
		}
		return false, detectFormatFromMagic(header), expected, nil
	}

	for _, sig := range magicBytesByFormat[expected] {
		if bytes.HasPrefix(header, sig.bytes) {
			return true, expected, expected, nil
		}
	}
	return false, detectFormatFromMagic(header), expected, nil
}

func invalidImage(msg string) *core.AnalysisError {
	return &core.AnalysisError{Kind: core.ErrKindInvalidImage, Message: msg}
}

// decode dispatches to the right stdlib/ecosystem decoder based on the
// detected magic bytes rather than trusting the extension, so a
// mislabeled-but-internally-consistent file still decodes.
func decode(r io.Reader, format string) (image.Image, error) {
	br := bufio.NewReader(r)
	switch format {
	case "JPEG":
		return jpeg.Decode(br)
	case "PNG":
		return png.Decode(br)
	case "GIF":
		return gif.Decode(br)
	case "BMP":
		return bmp.Decode(br)
	case "WEBP":
		return webp.Decode(br)
	case "TIFF":
		return tiff.Decode(br)
	default:
		img, _, err := image.Decode(br)
		return img, err
	}
}

// isAnimatedGIF reports whether the raw file bytes decode to a
// multi-frame GIF.
func isAnimatedGIF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

// exifOrientation reads the EXIF orientation tag, defaulting to 1
// (no-op) if absent or unreadable — most formats carry no EXIF at all.
func exifOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Load validates and loads path into a normalized core.Image: EXIF
// orientation applied, converted to RGB 8-bit, resized with a bilinear
// filter so max(w,h) <= opts.TargetRes, preserving aspect.
func Load(path string, opts Options) (*core.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &core.AnalysisError{Kind: core.ErrKindNotFound, Message: fmt.Sprintf("image not found: %s", path)}
		}
		return nil, invalidImage(fmt.Sprintf("failed to stat image: %v", err))
	}
	if info.IsDir() {
		return nil, invalidImage("provided path is a directory, not an image")
	}
	if opts.MaxBytes > 0 && info.Size() > opts.MaxBytes {
		return nil, invalidImage(fmt.Sprintf("image size %d exceeds max_bytes=%d", info.Size(), opts.MaxBytes))
	}

	var detectedFormat, expectedFormat string
	if opts.ValidateMagic {
		ok, detected, expected, verr := validateMagicBytes(path)
		if verr != nil {
			return nil, invalidImage(fmt.Sprintf("failed to read image header: %v", verr))
		}
		if !ok && expected != "" {
			d := detected
			if d == "" {
				d = "unknown"
			}
			return nil, &core.AnalysisError{
				Kind:     core.ErrKindInvalidImage,
				Message:  fmt.Sprintf("Magic byte mismatch: file extension suggests %s, but content appears to be %s", expected, d),
				Expected: expected,
				Detected: d,
			}
		}
		detectedFormat, expectedFormat = detected, expected
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, invalidImage(fmt.Sprintf("failed to open image: %v", err))
	}
	defer f.Close()

	header := make([]byte, 12)
	n, _ := io.ReadFull(f, header)
	format := detectFormatFromMagic(header[:n])
	if format == "" {
		format = expectedFormat
	}
	if detectedFormat == "" {
		detectedFormat = format
	}
	if format == "GIF" {
		if animated, _ := isAnimatedGIF(path); animated {
			return nil, invalidImage("animated images are not supported")
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, invalidImage(fmt.Sprintf("failed to seek image: %v", err))
	}
	decoded, err := decode(f, format)
	if err != nil {
		return nil, invalidImage(fmt.Sprintf("failed to decode image: %v", err))
	}

	bounds := decoded.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if opts.MaxDimension > 0 && (origW > opts.MaxDimension || origH > opts.MaxDimension) {
		return nil, invalidImage("image dimensions exceed allowed maximum")
	}

	oriented := applyOrientation(decoded, exifOrientation(path))
	rgb := toRGBA(oriented)

	target := opts.TargetRes
	if target <= 0 {
		target = 1920
	}
	resized := resizeToBound(rgb, target)

	return &core.Image{
		OriginalFormat:   detectedFormat,
		OriginalWidth:    origW,
		OriginalHeight:   origH,
		SizeBytes:        info.Size(),
		RGB:              resized,
		NormalizedWidth:  resized.Bounds().Dx(),
		NormalizedHeight: resized.Bounds().Dy(),
	}, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

// resizeToBound applies a bilinear resize so that max(w,h) <= target,
// preserving aspect ratio. Images already within bound are
// returned unchanged.
func resizeToBound(img *image.RGBA, target int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= target && h <= target {
		return img
	}
	var resized image.Image
	if w >= h {
		resized = imaging.Resize(img, target, 0, imaging.Linear)
	} else {
		resized = imaging.Resize(img, 0, target, imaging.Linear)
	}
	return toRGBA(resized)
}
