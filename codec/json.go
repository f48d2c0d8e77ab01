package codec

import (
	"encoding/json"
	"strings"

	"github.com/slackmgr/s3ingest/processor"
)

// ParseFailureField is set on records whose line was not a JSON object.
const ParseFailureField = "decode_error"

// JSON decodes each non-blank line as a JSON object into the record fields.
// A line that is not a JSON object is still emitted, with the raw line as
// message and the parse error under [ParseFailureField].
type JSON struct{}

func (*JSON) Decode(line string, emit processor.EmitFunc) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return emit(processor.Record{
			Message: line,
			Fields:  map[string]any{ParseFailureField: err.Error()},
		})
	}

	return emit(processor.Record{Message: line, Fields: fields})
}

func (*JSON) Flush(processor.EmitFunc) error {
	return nil
}
