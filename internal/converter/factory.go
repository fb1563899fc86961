package converter

import (
	"sync"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/format"
)

// variantKind identifies one of the four converter variants.
type variantKind int

const (
	variantImage variantKind = iota
	variantAudio
	variantVideo
	variantDocument
)

// Factory selects the converter variant for a format pair and caches
// variant instances.
type Factory struct {
	backend backend.Backend

	mu       sync.Mutex
	variants map[variantKind]Converter
}

// NewFactory creates a converter factory over the given backend.
func NewFactory(b backend.Backend) *Factory {
	return &Factory{
		backend:  b,
		variants: make(map[variantKind]Converter),
	}
}

// variantFor maps a category pair to the variant that owns it. The mapping
// mirrors the strategy table: selection follows the input category, except
// that image-to-document wrapping belongs to the document variant.
func variantFor(from, to format.Category) variantKind {
	if from == format.CategoryImage && to == format.CategoryDocument {
		return variantDocument
	}
	switch from {
	case format.CategoryAudio:
		return variantAudio
	case format.CategoryVideo:
		return variantVideo
	case format.CategoryDocument:
		return variantDocument
	default:
		return variantImage
	}
}

// For returns the converter for a format pair. Pairs outside the strategy
// table fail with format.IncompatibleError; pairs a variant declines fail
// with UnsupportedError. No resource is touched here.
func (f *Factory) For(from, to format.Descriptor) (Converter, error) {
	if _, err := format.ResolveStrategy(from.Category, to.Category); err != nil {
		return nil, err
	}

	c := f.variant(variantFor(from.Category, to.Category))
	if !c.CanConvert(from, to) {
		return nil, &UnsupportedError{From: from, To: to}
	}
	return c, nil
}

// CanConvert is the composite capability answer: the logical OR across all
// variants.
func (f *Factory) CanConvert(from, to format.Descriptor) bool {
	for _, kind := range []variantKind{variantImage, variantAudio, variantVideo, variantDocument} {
		if f.variant(kind).CanConvert(from, to) {
			return true
		}
	}
	return false
}

// variant returns the cached instance for a kind, creating it on first use.
func (f *Factory) variant(kind variantKind) Converter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.variants[kind]; ok {
		return c
	}

	var c Converter
	switch kind {
	case variantAudio:
		c = NewAudioConverter(f.backend)
	case variantVideo:
		c = NewVideoConverter(f.backend)
	case variantDocument:
		c = NewDocumentConverter(f.backend)
	default:
		c = NewImageConverter(f.backend)
	}
	f.variants[kind] = c
	return c
}
