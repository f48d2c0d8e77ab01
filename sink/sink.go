// Package sink delivers decoded records downstream.
//
// Every record is serialized as a JSON document carrying the record message,
// its decoder fields and the metadata of the object it came from.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/slackmgr/s3ingest/processor"
)

// Event is the serialized form of a record.
type Event struct {
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
	Key     string         `json:"key"`
	Bucket  string         `json:"bucket"`
	Folder  string         `json:"folder"`
}

// NewEvent builds the Event for rec decoded from the object described by meta.
func NewEvent(rec processor.Record, meta processor.Metadata) Event {
	return Event{
		Message: rec.Message,
		Fields:  rec.Fields,
		Key:     meta.Key,
		Bucket:  meta.Bucket,
		Folder:  meta.Folder,
	}
}

// Writer writes one JSON document per line to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ processor.Sink = (*Writer)(nil)

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &Writer{enc: enc}
}

// Emit writes rec as a single line.
func (w *Writer) Emit(_ context.Context, rec processor.Record, meta processor.Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(NewEvent(rec, meta)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}
