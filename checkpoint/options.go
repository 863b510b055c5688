package checkpoint

import (
	"runtime"

	"github.com/hupe1980/distvec"
	"github.com/hupe1980/distvec/codec"
	"github.com/hupe1980/distvec/resource"
)

type options struct {
	compression Compression
	committer   Committer
	rc          *resource.Controller
	codec       codec.Codec
	logger      *distvec.Logger
	concurrency int
}

// Option configures Save and Load.
type Option func(*options)

// WithCompression sets the payload compression for Save. Load reads the
// compression from each part header.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCommitter makes Save record the checkpoint with c after the manifest
// is written. Without a committer a checkpoint is complete once its
// manifest exists.
func WithCommitter(c Committer) Option {
	return func(o *options) {
		o.committer = c
	}
}

// WithResourceController limits concurrent part IO and IO throughput, and
// accounts Load's staging buffer against the memory limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithCodec sets the manifest codec. The default is codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger configures structured logging.
func WithLogger(l *distvec.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = distvec.NoopLogger()
		}
		o.logger = l
	}
}

// WithConcurrency sets how many parts Load reads at once on each worker.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression: NoCompression,
		codec:       codec.Default,
		logger:      distvec.NoopLogger(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
