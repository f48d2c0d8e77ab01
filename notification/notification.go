// Package notification decodes S3 event notifications delivered through SQS,
// either directly or wrapped in an SNS envelope, into the object-created
// records the ingestion pipeline acts on.
package notification

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/slackmgr/types"
)

const (
	// EventSourceS3 is the event source of every Amazon S3 event notification.
	EventSourceS3 = "aws:s3"

	// EventSourceMinIO is the event source MinIO puts on its bucket
	// notifications.
	EventSourceMinIO = "minio:s3"

	// EventNamePrefixObjectCreated matches ObjectCreated:Put, :Post, :Copy
	// and :CompleteMultipartUpload.
	EventNamePrefixObjectCreated = "ObjectCreated"

	maxLoggedEntryBytes = 512
)

// ObjectNotification references one newly created object.
type ObjectNotification struct {
	Bucket      string
	Key         string
	SizeBytes   int64
	EventSource string
	EventName   string
}

// IsObjectCreated reports whether n announces a newly created object.
// Both the Amazon form (ObjectCreated:Put) and the "s3:"-qualified form used
// by MinIO and Ceph (s3:ObjectCreated:Put) are recognized.
func (n ObjectNotification) IsObjectCreated() bool {
	return strings.HasPrefix(strings.TrimPrefix(n.EventName, "s3:"), EventNamePrefixObjectCreated)
}

// s3Record is the subset of an S3 event record the parser reads. The object
// is decoded through rawS3Object so the key reaches unescape untouched,
// instead of failing the whole entry on an invalid escape the way
// events.S3Object.UnmarshalJSON does.
type s3Record struct {
	EventSource string `json:"eventSource"`
	EventName   string `json:"eventName"`
	S3          struct {
		Bucket events.S3Bucket `json:"bucket"`
		Object rawS3Object     `json:"object"`
	} `json:"s3"`
}

type rawS3Object events.S3Object

// Parser decodes queue message bodies into object notifications.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	opts    *Options
	logger  types.Logger
	sources map[string]struct{}
}

// NewParser returns a Parser. Without options it expects bare S3 events from
// the aws:s3 event source.
func NewParser(logger types.Logger, opts ...Option) *Parser {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	sources := make(map[string]struct{}, len(options.eventSources))
	for _, s := range options.eventSources {
		sources[s] = struct{}{}
	}

	return &Parser{
		opts:    options,
		logger:  logger.WithField("component", "notification-parser"),
		sources: sources,
	}
}

// EventSources returns the accepted event sources in sorted order.
func (p *Parser) EventSources() []string {
	sources := make([]string, 0, len(p.sources))
	for s := range p.sources {
		sources = append(sources, s)
	}

	slices.Sort(sources)

	return sources
}

// Parse returns the object-created notifications in body.
//
// An error is returned only when body (or the SNS message it wraps) is not
// JSON at all. Valid JSON that is not an actionable S3 notification, such as
// the s3:TestEvent sent when a bucket notification is configured, yields an
// empty list; so does every entry that is malformed, comes from an event
// source that is not accepted, or announces anything other than object
// creation. Either way the owning message can be deleted, so dropped entries
// that could have referenced an object are logged at Error.
func (p *Parser) Parse(body string) ([]ObjectNotification, error) {
	payload := []byte(body)

	if p.opts.fromSNS {
		var envelope events.SNSEntity
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode SNS envelope: %w", err)
		}

		if envelope.Message == "" {
			return nil, nil
		}

		payload = []byte(envelope.Message)
	}

	var event map[string]json.RawMessage
	if err := json.Unmarshal(payload, &event); err != nil {
		if !json.Valid(payload) {
			return nil, fmt.Errorf("failed to decode S3 event notification: %w", err)
		}

		// Valid JSON, but not an object.
		return nil, nil
	}

	rawRecords, ok := event["Records"]
	if !ok {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawRecords, &entries); err != nil {
		p.logger.Errorf("Ignoring S3 event with a non-list Records field: %s", truncate(rawRecords))
		return nil, nil
	}

	notifications := make([]ObjectNotification, 0, len(entries))

	for i, entry := range entries {
		var r s3Record
		if err := json.Unmarshal(entry, &r); err != nil {
			p.logger.WithField("entry", i).Errorf("Skipping undecodable S3 event record %s: %v", truncate(entry), err)
			continue
		}

		n := ObjectNotification{
			Bucket:      unescape(r.S3.Bucket.Name),
			Key:         unescape(r.S3.Object.Key),
			SizeBytes:   r.S3.Object.Size,
			EventSource: r.EventSource,
			EventName:   r.EventName,
		}

		logger := p.logger.WithFields(map[string]any{
			"entry":        i,
			"event_source": n.EventSource,
			"event_name":   n.EventName,
			"bucket":       n.Bucket,
			"key":          n.Key,
		})

		if !n.IsObjectCreated() {
			logger.Debug("Ignoring S3 event record that does not announce a new object")
			continue
		}

		if _, ok := p.sources[n.EventSource]; !ok {
			logger.Errorf("Skipping object-created record from event source %q, accepted sources are %v", n.EventSource, p.EventSources())
			continue
		}

		if n.Bucket == "" || n.Key == "" {
			logger.Error("Skipping object-created record without bucket name or object key")
			continue
		}

		notifications = append(notifications, n)
	}

	return notifications, nil
}

// unescape decodes the form encoding S3 applies to names in notifications
// ("+" for space, %XX for everything else). Invalid escapes are kept as is.
func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}

	return decoded
}

func truncate(raw []byte) string {
	if len(raw) <= maxLoggedEntryBytes {
		return string(raw)
	}

	return string(raw[:maxLoggedEntryBytes]) + "..."
}
