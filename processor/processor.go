package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/slackmgr/s3ingest/linereader"
	"github.com/slackmgr/s3ingest/metrics"
	"github.com/slackmgr/s3ingest/notification"
	"github.com/slackmgr/types"
)

// ErrStopped is returned by [Processor.Process] when its context was
// cancelled before the whole file was processed.
var ErrStopped = errors.New("processing stopped before the end of the file")

// Processor drives the line reader, the lease and a decoder over a staged
// object. It is safe for concurrent use; per-object state lives in the
// decoder and lease passed to each call.
type Processor struct {
	sink    Sink
	codecs  *Codecs
	prefix  string
	metrics *metrics.Registry
	logger  types.Logger
}

// Option configures a [Processor].
type Option func(*Processor)

// WithPrefix sets the key prefix used for folder classification.
func WithPrefix(prefix string) Option {
	return func(p *Processor) {
		p.prefix = prefix
	}
}

// WithMetrics counts emitted records in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(p *Processor) {
		p.metrics = r
	}
}

// New returns a Processor emitting to sink and choosing decoders from codecs.
func New(sink Sink, codecs *Codecs, logger types.Logger, opts ...Option) *Processor {
	p := &Processor{
		sink:   sink,
		codecs: codecs,
		logger: logger,
	}

	for _, o := range opts {
		o(p)
	}

	return p
}

// Metadata returns the metadata attached to every record of n.
func (p *Processor) Metadata(n notification.ObjectNotification) Metadata {
	return Metadata{
		Key:    n.Key,
		Bucket: n.Bucket,
		Folder: Folder(p.prefix, n.Key),
	}
}

// Decoder returns a fresh decoder for the folder n is classified under.
//
//nolint:ireturn // decoders are pluggable
func (p *Processor) Decoder(n notification.ObjectNotification) Decoder {
	return p.codecs.For(Folder(p.prefix, n.Key))
}

// Process decodes the staged copy of n at path with dec and emits every
// record to the sink, in file order. Before each line it gives ext the
// chance to renew the lease and checks ctx; a cancelled ctx aborts with
// [ErrStopped].
//
// A nil error means the whole file was read and the decoder flushed.
func (p *Processor) Process(ctx context.Context, path string, n notification.ObjectNotification, dec Decoder, ext Extender) error {
	meta := p.Metadata(n)
	logger := p.logger.WithField("bucket", meta.Bucket).WithField("key", meta.Key)

	emitted := 0

	emit := func(rec Record) error {
		if err := p.sink.Emit(ctx, rec, meta); err != nil {
			return fmt.Errorf("failed to emit record: %w", err)
		}

		p.metrics.RecordEmitted(meta.Folder)
		emitted++

		return nil
	}

	lines := 0

	for line, err := range linereader.Lines(path) {
		if err != nil {
			return err
		}

		ext.MaybeExtend(ctx)

		if ctx.Err() != nil {
			logger.WithField("lines", lines).Info("Stop requested, abandoning file")
			return fmt.Errorf("%w: %w", ErrStopped, context.Cause(ctx))
		}

		if err := dec.Decode(line, emit); err != nil {
			return fmt.Errorf("failed to decode line %d of %s: %w", lines+1, meta.Key, err)
		}

		lines++
	}

	if err := dec.Flush(emit); err != nil {
		return fmt.Errorf("failed to flush decoder for %s: %w", meta.Key, err)
	}

	logger.WithField("lines", lines).WithField("records", emitted).Debug("File processed")

	return nil
}
