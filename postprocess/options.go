package postprocess

import "go.uber.org/zap"

// Option configures an Encoder or SSD post processor
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report degraded encodes and post
// processor setup.  By default nothing is logged
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {

	o := options{
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
