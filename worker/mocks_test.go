package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slackmgr/s3ingest/codec"
	"github.com/slackmgr/s3ingest/notification"
	"github.com/slackmgr/s3ingest/processor"
	"github.com/slackmgr/s3ingest/sqs"
	"github.com/slackmgr/types"
)

type nopLogger struct{}

//nolint:ireturn // Must return interface to implement types.Logger
func (l nopLogger) WithField(string, any) types.Logger { return l }

//nolint:ireturn // Must return interface to implement types.Logger
func (l nopLogger) WithFields(map[string]any) types.Logger { return l }
func (nopLogger) Debug(string)                             {}
func (nopLogger) Debugf(string, ...any)                    {}
func (nopLogger) Info(string)                              {}
func (nopLogger) Infof(string, ...any)                     {}
func (nopLogger) Error(string)                             {}
func (nopLogger) Errorf(string, ...any)                    {}

// recordingLogger keeps every Error line. It implements exactly the
// types.Logger method set.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *recordingLogger) WithField(string, any) types.Logger { return l }

//nolint:ireturn // Must return interface to implement types.Logger
func (l *recordingLogger) WithFields(map[string]any) types.Logger { return l }
func (l *recordingLogger) Debug(string)                           {}
func (l *recordingLogger) Debugf(string, ...any)                  {}
func (l *recordingLogger) Info(string)                            {}
func (l *recordingLogger) Infof(string, ...any)                   {}
func (l *recordingLogger) Error(msg string)                       { l.record(msg) }
func (l *recordingLogger) Errorf(format string, args ...any)      { l.record(fmt.Sprintf(format, args...)) }

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.errors...)
}

var (
	_ types.Logger = nopLogger{}
	_ types.Logger = (*recordingLogger)(nil)
)

type mockQueue struct {
	mu                sync.Mutex
	messages          []*sqs.Message
	receiveErrs       []error
	receives          int
	deleted           []string
	extended          int
	visibilityTimeout time.Duration
	onDelete          func()
}

func (q *mockQueue) Receive(ctx context.Context) (*sqs.Message, error) {
	q.mu.Lock()
	q.receives++

	if len(q.receiveErrs) > 0 {
		err := q.receiveErrs[0]
		q.receiveErrs = q.receiveErrs[1:]
		q.mu.Unlock()

		return nil, err
	}

	if len(q.messages) > 0 {
		msg := q.messages[0]
		q.messages = q.messages[1:]
		q.mu.Unlock()

		return msg, nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (q *mockQueue) Delete(_ context.Context, msg *sqs.Message) error {
	q.mu.Lock()
	q.deleted = append(q.deleted, msg.ID)
	onDelete := q.onDelete
	q.mu.Unlock()

	if onDelete != nil {
		onDelete()
	}

	return nil
}

func (q *mockQueue) ExtendVisibility(context.Context, *sqs.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.extended++

	return nil
}

func (q *mockQueue) VisibilityTimeout() time.Duration {
	if q.visibilityTimeout == 0 {
		return 10 * time.Minute
	}

	return q.visibilityTimeout
}

func (q *mockQueue) deletedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]string(nil), q.deleted...)
}

type mockStore struct {
	mu          sync.Mutex
	objects     map[string]string
	downloadErr error
	stageAsDir  bool
	downloads   []string
	deleted     []string
	paths       []string
}

func (s *mockStore) Download(_ context.Context, bucket, key, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloads = append(s.downloads, bucket+"/"+key)
	s.paths = append(s.paths, path)

	if s.downloadErr != nil {
		// leave a partial file behind like an interrupted copy would
		_ = os.WriteFile(path, []byte("partial"), 0o600)
		return s.downloadErr
	}

	if s.stageAsDir {
		// a non-empty directory in place of the file cannot be removed with os.Remove
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}

		return os.WriteFile(filepath.Join(path, "part"), nil, 0o600)
	}

	return os.WriteFile(path, []byte(s.objects[bucket+"/"+key]), 0o600)
}

func (s *mockStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append(s.deleted, bucket+"/"+key)

	return nil
}

type memorySink struct {
	mu      sync.Mutex
	records []string
	onEmit  func()
}

func (s *memorySink) Emit(_ context.Context, rec processor.Record, _ processor.Metadata) error {
	s.mu.Lock()
	s.records = append(s.records, rec.Message)
	onEmit := s.onEmit
	s.mu.Unlock()

	if onEmit != nil {
		onEmit()
	}

	return nil
}

type panickingProcessor struct{}

//nolint:ireturn // test double
func (panickingProcessor) Decoder(notification.ObjectNotification) processor.Decoder {
	return &codec.Line{}
}

func (panickingProcessor) Process(context.Context, string, notification.ObjectNotification, processor.Decoder, processor.Extender) error {
	panic("decoder bug")
}

func newProcessor(sink processor.Sink) *processor.Processor {
	line, _ := codec.Lookup(codec.NameLine, codec.Config{})
	return processor.New(sink, processor.NewCodecs(line, nil), nopLogger{}, processor.WithPrefix("logs"))
}
