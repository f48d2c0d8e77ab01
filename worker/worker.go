// Package worker runs the poll-download-process-delete loop and a pool of
// such loops.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/slackmgr/s3ingest/metrics"
	"github.com/slackmgr/s3ingest/notification"
	"github.com/slackmgr/s3ingest/processor"
	"github.com/slackmgr/s3ingest/sqs"
	"github.com/slackmgr/types"
)

const remoteDeleteTimeout = 30 * time.Second

// Queue is the message queue a Worker consumes. *sqs.Client implements it.
type Queue interface {
	Receive(ctx context.Context) (*sqs.Message, error)
	Delete(ctx context.Context, msg *sqs.Message) error
	ExtendVisibility(ctx context.Context, msg *sqs.Message) error
	VisibilityTimeout() time.Duration
}

// ObjectStore fetches and deletes notified objects. *s3.Client and
// *minio.Client implement it.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key, path string) error
	Delete(ctx context.Context, bucket, key string) error
}

// FileProcessor decodes a staged object. *processor.Processor implements it.
type FileProcessor interface {
	Decoder(n notification.ObjectNotification) processor.Decoder
	Process(ctx context.Context, path string, n notification.ObjectNotification, dec processor.Decoder, ext processor.Extender) error
}

// DownloadResult is the outcome of staging one object locally.
type DownloadResult int

const (
	// DownloadSucceeded means the object is fully staged.
	DownloadSucceeded DownloadResult = iota

	// DownloadFailed means the download failed; redelivery retries it.
	DownloadFailed

	// DownloadStopped means the worker was asked to stop.
	DownloadStopped
)

func (r DownloadResult) String() string {
	switch r {
	case DownloadSucceeded:
		return "succeeded"
	case DownloadFailed:
		return "failed"
	case DownloadStopped:
		return "stopped"
	default:
		return "unknown(" + strconv.Itoa(int(r)) + ")"
	}
}

// Worker consumes one message at a time from a queue. For every object a
// message announces it stages the object under its own directory, decodes
// it and emits its records. The message is deleted only once all of its
// objects went through; otherwise it is left for redelivery.
//
// A Worker is not safe for concurrent use. Run several Workers, each with
// its own options, to consume in parallel.
type Worker struct {
	queue     Queue
	store     ObjectStore
	parser    *notification.Parser
	processor FileProcessor
	opts      *Options
	stageDir  string
	logger    types.Logger
}

// New creates a Worker.
func New(queue Queue, store ObjectStore, parser *notification.Parser, proc FileProcessor, logger types.Logger, opts ...Option) *Worker {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Worker{
		queue:     queue,
		store:     store,
		parser:    parser,
		processor: proc,
		opts:      options,
		stageDir:  filepath.Join(options.tempDir, "worker-"+strconv.Itoa(options.id)),
		logger:    logger.WithField("worker_id", options.id),
	}
}

// Run polls the queue until ctx is cancelled. Transient queue errors are
// retried after a backoff. Run returns nil after cancellation and an error
// only when the loop cannot continue at all.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.opts.validate(); err != nil {
		return fmt.Errorf("invalid worker options: %w", err)
	}

	if err := os.MkdirAll(w.stageDir, 0o755); err != nil { //nolint:gosec // staged objects are not secret
		return fmt.Errorf("failed to create temporary directory %s: %w", w.stageDir, err)
	}

	w.opts.metrics.WorkerStarted()
	defer w.opts.metrics.WorkerStopped()

	w.logger.WithField("temp_dir", w.stageDir).Info("Worker started")

	b := sqs.NewBackoff(w.opts.backoffInitial, w.opts.backoffCeiling)

	err := sqs.RunWithBackoff(ctx, b, w.logger, w.opts.metrics, func(ctx context.Context) error {
		return w.poll(ctx, b)
	})

	w.logger.Info("Worker stopped")

	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (w *Worker) poll(ctx context.Context, b *sqs.Backoff) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := w.queue.Receive(ctx)
		if err != nil {
			return err //nolint:wrapcheck // classified by RunWithBackoff
		}

		b.Reset()

		if msg == nil {
			continue
		}

		w.HandleMessage(ctx, msg)
	}
}

// HandleMessage processes every object msg announces and deletes msg when
// all of them succeeded. It never panics and never returns an error: a
// message that cannot be processed is simply left on the queue.
func (w *Worker) HandleMessage(ctx context.Context, msg *sqs.Message) {
	logger := w.logger.WithField("message_id", msg.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Recovered from panic while handling message: %v", r)
			w.opts.metrics.MessageRetained()
		}
	}()

	objects, err := w.parser.Parse(msg.Body)
	if err != nil {
		logger.Errorf("Discarding unparsable message: %v", err)
		w.complete(ctx, msg, logger)

		return
	}

	if len(objects) == 0 {
		logger.Debug("Message has no object-created records")
		w.complete(ctx, msg, logger)

		return
	}

	lease := sqs.NewLease(msg, w.queue.VisibilityTimeout(), func(ctx context.Context) error {
		return w.queue.ExtendVisibility(ctx, msg)
	}, logger)

	for _, n := range objects {
		lease.MaybeExtend(ctx)

		if !w.handleObject(ctx, n, lease, logger) {
			w.opts.metrics.MessageRetained()
			logger.WithField("key", n.Key).Info("Message retained for redelivery")

			return
		}
	}

	if w.opts.deleteOnSuccess {
		w.deleteObjects(ctx, objects, logger)
	}

	w.complete(ctx, msg, logger)
}

func (w *Worker) handleObject(ctx context.Context, n notification.ObjectNotification, lease *sqs.Lease, logger types.Logger) bool {
	logger = logger.WithField("bucket", n.Bucket).WithField("key", n.Key)
	start := time.Now()
	path := filepath.Join(w.stageDir, filepath.Base(n.Key))

	defer w.removeLocal(path, logger)

	switch w.download(ctx, n, path, logger) {
	case DownloadSucceeded:
	case DownloadStopped:
		w.opts.metrics.ObjectProcessed(metrics.OutcomeStopped, time.Since(start))
		return false
	case DownloadFailed:
		w.opts.metrics.ObjectProcessed(metrics.OutcomeDownloadFailed, time.Since(start))
		return false
	}

	err := w.processor.Process(ctx, path, n, w.processor.Decoder(n), lease)

	switch {
	case err == nil:
		w.opts.metrics.ObjectProcessed(metrics.OutcomeSuccess, time.Since(start))
		logger.WithField("elapsed", time.Since(start)).Info("Object processed")

		return true
	case errors.Is(err, processor.ErrStopped):
		w.opts.metrics.ObjectProcessed(metrics.OutcomeStopped, time.Since(start))
		logger.Info("Processing stopped before the end of the object")
	default:
		w.opts.metrics.ObjectProcessed(metrics.OutcomeProcessFailed, time.Since(start))
		logger.Errorf("Failed to process object: %v", err)
	}

	return false
}

func (w *Worker) download(ctx context.Context, n notification.ObjectNotification, path string, logger types.Logger) DownloadResult {
	if ctx.Err() != nil {
		return DownloadStopped
	}

	if err := w.store.Download(ctx, n.Bucket, n.Key, path); err != nil {
		if ctx.Err() != nil {
			logger.Info("Download interrupted by shutdown")
			return DownloadStopped
		}

		logger.Errorf("Failed to download object: %v", err)

		return DownloadFailed
	}

	return DownloadSucceeded
}

// deleteObjects removes the processed objects from the store. A failure is
// logged and does not keep the message.
func (w *Worker) deleteObjects(ctx context.Context, objects []notification.ObjectNotification, logger types.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteDeleteTimeout)
	defer cancel()

	for _, n := range objects {
		if err := w.store.Delete(ctx, n.Bucket, n.Key); err != nil {
			logger.WithField("bucket", n.Bucket).WithField("key", n.Key).Errorf("Failed to delete object: %v", err)
		}
	}
}

func (w *Worker) complete(ctx context.Context, msg *sqs.Message, logger types.Logger) {
	if !w.opts.deleteMessages {
		logger.Debug("Message deletion disabled, leaving it to expire")
		return
	}

	if err := w.queue.Delete(ctx, msg); err != nil {
		logger.Errorf("Failed to delete message: %v", err)
	}
}

func (w *Worker) removeLocal(path string, logger types.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Errorf("Failed to remove staged file %s: %v", path, err)
	}
}
