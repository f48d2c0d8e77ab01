package notification

// Options configures a Parser.
type Options struct {
	fromSNS      bool
	eventSources []string
}

// Option is a functional option for configuring a Parser.
type Option func(*Options)

func newOptions() *Options {
	return &Options{
		eventSources: []string{EventSourceS3},
	}
}

// WithSNSEnvelope expects each body to be an SNS notification whose
// "Message" field carries the S3 event.
func WithSNSEnvelope(fromSNS bool) Option {
	return func(o *Options) {
		o.fromSNS = fromSNS
	}
}

// WithEventSources sets the event sources whose object-created records are
// accepted, replacing the default of aws:s3. Empty entries are ignored and an
// empty list keeps the default.
func WithEventSources(sources ...string) Option {
	return func(o *Options) {
		accepted := make([]string, 0, len(sources))

		for _, s := range sources {
			if s != "" {
				accepted = append(accepted, s)
			}
		}

		if len(accepted) > 0 {
			o.eventSources = accepted
		}
	}
}
