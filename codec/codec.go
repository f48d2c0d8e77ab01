// Package codec provides the built-in line decoders: "line" (one record per
// line), "json" (one JSON document per line) and "multiline" (lines joined
// into one record until a pattern says a new record starts).
package codec

import (
	"fmt"
	"regexp"

	"github.com/slackmgr/s3ingest/processor"
)

// Codec names accepted by [Lookup].
const (
	NameLine      = "line"
	NameJSON      = "json"
	NameMultiline = "multiline"
)

// Config carries the settings of the configurable codecs.
type Config struct {
	// MultilinePattern matches the lines that continue the previous record,
	// or, with MultilineNegate, the lines that start a new one.
	MultilinePattern  string
	MultilineNegate   bool
	MultilineMaxLines int
}

// Lookup returns the decoder factory registered under name.
func Lookup(name string, cfg Config) (processor.DecoderFactory, error) {
	switch name {
	case NameLine, "plain", "":
		return func() processor.Decoder { return &Line{} }, nil
	case NameJSON, "json_lines":
		return func() processor.Decoder { return &JSON{} }, nil
	case NameMultiline:
		if cfg.MultilinePattern == "" {
			return nil, fmt.Errorf("codec %s requires a pattern", name)
		}

		pattern, err := regexp.Compile(cfg.MultilinePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid multiline pattern: %w", err)
		}

		return func() processor.Decoder {
			return NewMultiline(pattern, cfg.MultilineNegate, cfg.MultilineMaxLines)
		}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Line emits every line as its own record.
type Line struct{}

func (*Line) Decode(line string, emit processor.EmitFunc) error {
	return emit(processor.Record{Message: line})
}

func (*Line) Flush(processor.EmitFunc) error {
	return nil
}
