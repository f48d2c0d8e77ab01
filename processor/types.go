package processor

import "context"

// Record is one decoded unit of an object.
type Record struct {
	Message string
	Fields  map[string]any
}

// Metadata identifies the object a record was decoded from.
type Metadata struct {
	Key    string
	Bucket string
	Folder string
}

// EmitFunc receives a decoded record. A non-nil error aborts decoding.
type EmitFunc func(Record) error

// Decoder turns lines into records. Decoders may buffer lines between calls;
// Flush emits whatever is buffered. A Decoder instance decodes a single
// object and is used by one goroutine only.
type Decoder interface {
	Decode(line string, emit EmitFunc) error
	Flush(emit EmitFunc) error
}

// DecoderFactory returns a fresh Decoder for one object.
type DecoderFactory func() Decoder

// Sink receives decoded records downstream. Implementations must be safe for
// concurrent use by all workers.
type Sink interface {
	Emit(ctx context.Context, rec Record, meta Metadata) error
}

// Extender renews the lease of the message being processed when it is due.
// It is called before every line.
type Extender interface {
	MaybeExtend(ctx context.Context)
}
