package sqlstmt

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/slingdata-io/sqlstmt/internal/logger"
)

// Logger is the structured logger used by connections and statements.
// A *zap.SugaredLogger satisfies it.
type Logger = logger.Logger

const (
	// DefaultDriver is the ODBC driver name used by Connect.
	DefaultDriver = "MySQL ODBC 8.0 Unicode Driver"

	// DefaultMaxColumnBuffer is the widest bytes column bound to a fixed
	// output buffer. Wider columns are read in pieces after each fetch.
	DefaultMaxColumnBuffer = 1 << 20
)

type options struct {
	logger          Logger
	driver          string
	maxColumnBuffer int
	meterProvider   metric.MeterProvider
	loginTimeout    time.Duration
}

func defaultOptions() options {
	return options{
		logger:          logger.NewNop(),
		driver:          DefaultDriver,
		maxColumnBuffer: DefaultMaxColumnBuffer,
	}
}

// Option configures a Connection
type Option func(*options)

// WithLogger sets the logger for the connection and its statements.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDriver sets the ODBC driver name used by Connect.
func WithDriver(name string) Option {
	return func(o *options) {
		o.driver = name
	}
}

// WithMaxColumnBuffer caps the bytes allocated per text or binary result
// column. Columns the server reports as wider are left unbound and read
// with SQLGetData on every Fetch.
func WithMaxColumnBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxColumnBuffer = n
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider. The global
// provider is used when unset.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = p
	}
}

// WithLoginTimeout sets SQL_ATTR_LOGIN_TIMEOUT before connecting.
// A value of 0 leaves the driver default.
func WithLoginTimeout(d time.Duration) Option {
	return func(o *options) {
		o.loginTimeout = d
	}
}

func (o *options) provider() metric.MeterProvider {
	if o.meterProvider != nil {
		return o.meterProvider
	}
	return otel.GetMeterProvider()
}
