package orchestrator

import (
	"path/filepath"

	"imageguard/internal/core"
	"imageguard/internal/preprocess"
)

// loadImage runs the preprocessor with the Analyzer's
// configured limits and resize target, producing the normalized
// core.Image every module sees.
func (a *Analyzer) loadImage(path string) (*core.Image, error) {
	return preprocess.Load(path, preprocess.Options{
		MaxBytes:      a.preprocess.MaxBytes,
		MaxDimension:  a.preprocess.MaxDimension,
		ValidateMagic: a.preprocess.ValidateMagic,
		TargetRes:     a.preprocess.TargetRes,
	})
}

// imageInfo builds the image_info block of the result envelope. An
// empty path leaves Filename blank; the normalized dimensions always
// come from img since preprocessing completes before any module runs.
func imageInfo(path string, img *core.Image) core.ImageInfo {
	info := core.ImageInfo{
		Format:           img.OriginalFormat,
		Width:            img.OriginalWidth,
		Height:           img.OriginalHeight,
		SizeBytes:        img.SizeBytes,
		NormalizedWidth:  img.NormalizedWidth,
		NormalizedHeight: img.NormalizedHeight,
	}
	if path != "" {
		info.Filename = filepath.Base(path)
	}
	return info
}
