package tcp

import (
	"log/slog"
	"time"

	"github.com/hupe1980/distvec/internal/compress"
)

// Compression selects the payload compression of outgoing frames.
type Compression = compress.Type

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

const (
	// DefaultCompressionThreshold is the smallest payload that is compressed.
	DefaultCompressionThreshold = 4 << 10

	// DefaultDialTimeout bounds connection setup and the hello handshake.
	DefaultDialTimeout = 10 * time.Second

	// MaxFrameSize is the largest payload accepted from a peer.
	MaxFrameSize = 1 << 30
)

type options struct {
	compression Compression
	threshold   int
	logger      *slog.Logger
	dialTimeout time.Duration
}

// Option configures a TCP communicator.
type Option func(*options)

// WithCompression compresses outgoing payloads with c.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCompressionThreshold sets the payload size from which compression is
// applied.
func WithCompressionThreshold(n int) Option {
	return func(o *options) {
		o.threshold = n
	}
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDialTimeout bounds connection setup and the hello handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

func applyOptions(opts []Option) options {
	o := options{
		compression: CompressionNone,
		threshold:   DefaultCompressionThreshold,
		logger:      slog.New(slog.DiscardHandler),
		dialTimeout: DefaultDialTimeout,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
