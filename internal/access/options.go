package access

import (
	"time"

	"github.com/tejzpr/formgate/internal/logging"
	"go.uber.org/zap"
)

type options struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures the access components.
type Option func(*options)

// WithClock replaces the wall clock, mainly for tests. Times are stored
// in UTC so that sqlite compares them correctly as text.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = func() time.Time { return now().UTC() }
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)
	return o
}
