package orchestrator

import (
	"imageguard/internal/modules/frequency"
	"imageguard/internal/modules/hiddentext"
	"imageguard/internal/modules/steganography"
	"imageguard/internal/modules/structural"
	"imageguard/internal/modules/text"
)

// Aliases binding the registry's compile-time module slots to the
// concrete detector implementations. Keeping these as local aliases
// rather than importing the concrete names directly into New keeps its
// registration block readable as "one module per row" without five
// extra import-qualified names.
type (
	textModule          = text.Module
	hiddenTextModule    = hiddentext.Module
	frequencyModule     = frequency.Module
	steganographyModule = steganography.Module
	structuralModule    = structural.Module
)
