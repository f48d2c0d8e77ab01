package codec

import (
	"regexp"
	"strings"

	"github.com/slackmgr/s3ingest/processor"
)

const defaultMultilineMaxLines = 500

// Multiline joins continuation lines onto the record they belong to, for
// stack traces and other records spanning several lines. A record is only
// complete once the next one starts, so the last record of a file is
// emitted by Flush.
type Multiline struct {
	pattern  *regexp.Regexp
	negate   bool
	maxLines int
	buffer   []string
}

// NewMultiline returns a Multiline decoder. A line continues the current
// record when it matches pattern, or, with negate, when it does not. A
// record is emitted early once it holds maxLines lines (default 500).
func NewMultiline(pattern *regexp.Regexp, negate bool, maxLines int) *Multiline {
	if maxLines <= 0 {
		maxLines = defaultMultilineMaxLines
	}

	return &Multiline{
		pattern:  pattern,
		negate:   negate,
		maxLines: maxLines,
	}
}

func (m *Multiline) Decode(line string, emit processor.EmitFunc) error {
	continues := m.pattern.MatchString(line) != m.negate

	if !continues || len(m.buffer) >= m.maxLines {
		if err := m.Flush(emit); err != nil {
			return err
		}
	}

	m.buffer = append(m.buffer, line)

	return nil
}

func (m *Multiline) Flush(emit processor.EmitFunc) error {
	if len(m.buffer) == 0 {
		return nil
	}

	rec := processor.Record{Message: strings.Join(m.buffer, "\n")}

	if len(m.buffer) > 1 {
		rec.Fields = map[string]any{"multiline": true}
	}

	m.buffer = m.buffer[:0]

	return emit(rec)
}
