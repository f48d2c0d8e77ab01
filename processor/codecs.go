package processor

import "maps"

// Codecs selects the decoder for a folder classification. It is immutable
// and safe for concurrent use.
type Codecs struct {
	fallback DecoderFactory
	byFolder map[string]DecoderFactory
}

// NewCodecs returns Codecs that use byFolder where a folder has a mapping
// and fallback everywhere else.
func NewCodecs(fallback DecoderFactory, byFolder map[string]DecoderFactory) *Codecs {
	return &Codecs{
		fallback: fallback,
		byFolder: maps.Clone(byFolder),
	}
}

// For returns a fresh decoder for folder.
//
//nolint:ireturn // decoders are pluggable
func (c *Codecs) For(folder string) Decoder {
	if f, ok := c.byFolder[folder]; ok && f != nil {
		return f()
	}

	return c.fallback()
}

// Has reports whether folder has its own decoder mapping.
func (c *Codecs) Has(folder string) bool {
	f, ok := c.byFolder[folder]
	return ok && f != nil
}
