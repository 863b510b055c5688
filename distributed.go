package distvec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/distvec/comm"
	"github.com/hupe1980/distvec/internal/kernels"
	"github.com/hupe1980/distvec/internal/partition"
	"github.com/hupe1980/distvec/internal/wire"
	"github.com/hupe1980/distvec/resource"
)

// DistributedVector is a dense vector split contiguously, in rank order,
// over the workers of a communicator.
//
// Each worker owns the half-open global range [FirstLocalIndex(),
// LastLocalIndex()) and can only read or write indices in it. Reductions and
// localize operations are collectives: every worker of the group must call
// them in the same order.
//
// A DistributedVector is not safe for concurrent use by multiple goroutines.
type DistributedVector[T Scalar] struct {
	values     []T
	globalSize int
	localSize  int
	firstLocal int
	lastLocal  int
	ptype      ParallelType

	initialized bool
	closed      bool

	// layout is recomputed by every Init from the all-gathered local sizes.
	layout partition.Layout

	// rc holds the reservation for values; it moves with the buffer on Swap.
	rc       *resource.Controller
	reserved int64

	comm    comm.Communicator
	opts    options
	log     *Logger
	metrics MetricsCollector
}

// New returns an uninitialized vector bound to c. A nil c is replaced by
// comm.Self().
func New[T Scalar](c comm.Communicator, opts ...Option) *DistributedVector[T] {
	if c == nil {
		c = comm.Self()
	}
	o := applyOptions(opts)
	return &DistributedVector[T]{
		comm:    c,
		opts:    o,
		rc:      o.rc,
		log:     o.logger.WithRank(c.Rank(), c.Size()),
		metrics: o.metricsCollector,
	}
}

// NewSized returns a serial vector of n entries. Collective.
func NewSized[T Scalar](ctx context.Context, c comm.Communicator, n int, opts ...Option) (*DistributedVector[T], error) {
	v := New[T](c, opts...)
	if err := v.InitGlobal(ctx, n); err != nil {
		return nil, err
	}
	return v, nil
}

// NewPartitioned returns a vector of n entries of which this worker owns
// nLocal. Collective.
func NewPartitioned[T Scalar](ctx context.Context, c comm.Communicator, n, nLocal int, opts ...Option) (*DistributedVector[T], error) {
	v := New[T](c, opts...)
	if err := v.Init(ctx, n, nLocal); err != nil {
		return nil, err
	}
	return v, nil
}

// NewGhosted is NewPartitioned with a ghost index list. See InitGhosted.
func NewGhosted[T Scalar](ctx context.Context, c comm.Communicator, n, nLocal int, ghost []int, opts ...Option) (*DistributedVector[T], error) {
	v := New[T](c, opts...)
	if err := v.InitGhosted(ctx, n, nLocal, ghost); err != nil {
		return nil, err
	}
	return v, nil
}

type initConfig struct {
	ptype ParallelType
}

// InitOption configures a single Init call.
type InitOption func(*initConfig)

// Fast marks an Init whose caller overwrites every entry before reading.
// Storage is always freshly allocated, so entries still start at zero.
func Fast() InitOption {
	return func(*initConfig) {}
}

// WithParallelType requests a layout instead of resolving it automatically.
func WithParallelType(pt ParallelType) InitOption {
	return func(c *initConfig) {
		c.ptype = pt
	}
}

// EvenLocalSize returns the local size of c's rank when n entries are spread
// as evenly as possible over the group. Lower ranks get the remainder.
func EvenLocalSize(n int, c comm.Communicator) int {
	return partition.EvenSize(n, c.Size(), c.Rank())
}

// Init sizes the vector to n global entries of which this worker owns nLocal.
// It is a collective: every worker must call it with the same n.
//
// The owned range is the prefix sum of the local sizes of lower ranks. An
// already initialized vector is cleared first and gets a new zeroed buffer.
// Returned errors come from the communicator or the resource controller;
// invalid arguments fault.
func (v *DistributedVector[T]) Init(ctx context.Context, n, nLocal int, opts ...InitOption) error {
	const op = "init"

	var cfg initConfig
	for _, fn := range opts {
		fn(&cfg)
	}

	if n < 0 || nLocal < 0 {
		fault(op, ErrInvalidSize, "global %d, local %d", n, nLocal)
	}
	if nLocal > n {
		fault(op, ErrInvalidSize, "local size %d exceeds global size %d", nLocal, n)
	}

	switch cfg.ptype {
	case Automatic, Parallel:
	case Serial:
		if n != nLocal {
			fault(op, ErrInvalidSize, "serial vector needs local size %d to equal global size %d", nLocal, n)
		}
	default:
		fault(op, ErrNotImplemented, "parallel type %s", cfg.ptype)
	}

	if comm.IsSelf(v.comm) && n != nLocal {
		fault(op, ErrParallelUnavailable, "global %d, local %d", n, nLocal)
	}

	start := time.Now()
	err := v.init(ctx, n, nLocal, cfg.ptype)
	v.metrics.RecordInit(n, nLocal, time.Since(start), err)
	v.log.LogInit(ctx, n, nLocal, v.firstLocal, v.ptype, err)
	return err
}

func (v *DistributedVector[T]) init(ctx context.Context, n, nLocal int, ptype ParallelType) error {
	const op = "init"

	if err := v.verify(ctx, fmt.Sprintf("init(%d)", n)); err != nil {
		return err
	}

	if v.initialized {
		v.Clear()
	}

	bytes := int64(nLocal) * int64(kernels.KindOf[T]().Size())
	reserveErr := v.rc.ReserveMemory(bytes)

	var (
		layout partition.Layout
		first  int
	)
	if comm.IsSelf(v.comm) {
		if reserveErr != nil {
			return fmt.Errorf("%s: %w", op, reserveErr)
		}
		if ptype == Automatic {
			ptype = Serial
		}
		layout = partition.Single(n)
	} else {
		sizes, requested, err := v.gatherLayout(ctx, nLocal, ptype, reserveErr)
		if err != nil {
			if reserveErr == nil {
				v.rc.ReleaseMemory(bytes)
			}
			return err
		}
		ptype, err = resolveType(n, sizes, requested)
		if err != nil {
			v.rc.ReleaseMemory(bytes)
			fault(op, ErrInconsistentPartition, "%v", err)
		}
		if ptype == Serial {
			// Every worker holds a full replica.
			layout = partition.Single(n)
		} else {
			layout = partition.FromSizes(sizes)
			if v.opts.validate {
				if err := layout.Validate(n); err != nil {
					v.rc.ReleaseMemory(bytes)
					fault(op, ErrInconsistentPartition, "%v", err)
				}
			}
			first = layout.First(v.comm.Rank())
		}
	}

	v.values = make([]T, nLocal)

	v.globalSize = n
	v.localSize = nLocal
	v.firstLocal = first
	v.lastLocal = first + nLocal
	v.ptype = ptype
	v.layout = layout
	v.reserved = bytes
	v.initialized = true
	v.closed = false
	return nil
}

// gatherLayout all-gathers every worker's local size and requested type
// together with the outcome of its memory reservation, so that all workers
// fail together.
func (v *DistributedVector[T]) gatherLayout(ctx context.Context, nLocal int, ptype ParallelType, reserveErr error) ([]int, []ParallelType, error) {
	ok := int64(1)
	if reserveErr != nil {
		ok = 0
	}
	all, err := v.comm.AllGather(ctx, wire.AppendInt64s(nil, int64(nLocal), int64(ptype), ok))
	if err != nil {
		return nil, nil, fmt.Errorf("init: %w", err)
	}

	sizes := make([]int, len(all))
	requested := make([]ParallelType, len(all))
	failed := -1
	for r, buf := range all {
		x, err := wire.DecodeInt64s(buf)
		if err != nil || len(x) != 3 {
			return nil, nil, fmt.Errorf("init: %w: rank %d sent a malformed size", comm.ErrMismatch, r)
		}
		sizes[r] = int(x[0])
		requested[r] = ParallelType(x[1])
		if x[2] == 0 && failed < 0 {
			failed = r
		}
	}

	switch {
	case reserveErr != nil:
		return nil, nil, fmt.Errorf("init: %w", reserveErr)
	case failed >= 0:
		return nil, nil, fmt.Errorf("init: rank %d: %w", failed, resource.ErrMemoryLimitExceeded)
	}
	return sizes, requested, nil
}

// resolveType settles the layout type from what every worker asked for.
// A vector is serial when every worker holds all n entries; workers that
// asked for Automatic follow the shape. All workers see the same input and
// reach the same answer.
func resolveType(n int, sizes []int, requested []ParallelType) (ParallelType, error) {
	replicated := true
	for _, s := range sizes {
		if s != n {
			replicated = false
			break
		}
	}

	var serial, parallel bool
	for _, pt := range requested {
		serial = serial || pt == Serial
		parallel = parallel || pt == Parallel
	}

	switch {
	case serial && parallel:
		return Automatic, fmt.Errorf("workers disagree on the parallel type")
	case serial && !replicated:
		return Automatic, fmt.Errorf("serial vector of %d entries, but local sizes are %v", n, sizes)
	case parallel || !replicated:
		return Parallel, nil
	default:
		return Serial, nil
	}
}

// InitGlobal initializes a serial vector: every worker holds all n entries.
func (v *DistributedVector[T]) InitGlobal(ctx context.Context, n int, opts ...InitOption) error {
	return v.Init(ctx, n, n, opts...)
}

// InitGhosted is Init with a list of ghost indices.
//
// Ghost storage is not implemented: the list is accepted and ignored, and
// remote values must be fetched with LocalizeIndices or LocalizeSendList.
func (v *DistributedVector[T]) InitGhosted(ctx context.Context, n, nLocal int, ghost []int, opts ...InitOption) error {
	if len(ghost) > 0 {
		v.log.DebugContext(ctx, "ghost indices ignored", "count", len(ghost))
	}
	return v.Init(ctx, n, nLocal, opts...)
}

// InitLike initializes v with the global size, local size and type of other,
// which must be initialized.
func (v *DistributedVector[T]) InitLike(ctx context.Context, other Vector[T], opts ...InitOption) error {
	if !other.Initialized() {
		fault("init_like", ErrNotInitialized, "source vector")
	}
	opts = append([]InitOption{WithParallelType(other.Type())}, opts...)
	return v.Init(ctx, other.Size(), other.LocalSize(), opts...)
}

// Clear releases the local buffer and resets the vector to the uninitialized
// state. It is local and may be called at any time.
func (v *DistributedVector[T]) Clear() {
	v.rc.ReleaseMemory(v.reserved)
	v.reserved = 0
	v.values = nil
	v.globalSize = 0
	v.localSize = 0
	v.firstLocal = 0
	v.lastLocal = 0
	v.layout = partition.Layout{}
	v.initialized = false
	v.closed = false
}

// Close marks the vector as assembled after a batch of local writes.
func (v *DistributedVector[T]) Close() {
	v.mustBeInitialized("close")
	v.closed = true
}

// ZeroClone returns a vector with the same layout and communicator whose
// entries are all zero. No communication takes place.
func (v *DistributedVector[T]) ZeroClone() (*DistributedVector[T], error) {
	v.mustBeInitialized("zero_clone")

	bytes := int64(v.localSize) * int64(kernels.KindOf[T]().Size())
	if err := v.rc.ReserveMemory(bytes); err != nil {
		return nil, fmt.Errorf("zero_clone: %w", err)
	}

	return &DistributedVector[T]{
		values:      make([]T, v.localSize),
		globalSize:  v.globalSize,
		localSize:   v.localSize,
		firstLocal:  v.firstLocal,
		lastLocal:   v.lastLocal,
		ptype:       v.ptype,
		initialized: true,
		layout:      v.layout,
		rc:          v.rc,
		reserved:    bytes,
		comm:        v.comm,
		opts:        v.opts,
		log:         v.log,
		metrics:     v.metrics,
	}, nil
}

// Clone returns a copy of v with independent storage. No communication
// takes place.
func (v *DistributedVector[T]) Clone() (*DistributedVector[T], error) {
	c, err := v.ZeroClone()
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	copy(c.values, v.values)
	c.closed = v.closed
	return c, nil
}

// Swap exchanges the contents of v and other in constant time: sizes, owned
// ranges, layout, type, lifecycle flags and the buffer. The communicator,
// logger and options stay with their vector. other must be a
// *DistributedVector[T].
func (v *DistributedVector[T]) Swap(other Vector[T]) {
	o, ok := other.(*DistributedVector[T])
	if !ok {
		fault("swap", ErrTypeMismatch, "cannot swap with %T", other)
	}
	v.values, o.values = o.values, v.values
	v.globalSize, o.globalSize = o.globalSize, v.globalSize
	v.localSize, o.localSize = o.localSize, v.localSize
	v.firstLocal, o.firstLocal = o.firstLocal, v.firstLocal
	v.lastLocal, o.lastLocal = o.lastLocal, v.lastLocal
	v.ptype, o.ptype = o.ptype, v.ptype
	v.initialized, o.initialized = o.initialized, v.initialized
	v.closed, o.closed = o.closed, v.closed
	v.layout, o.layout = o.layout, v.layout
	v.rc, o.rc = o.rc, v.rc
	v.reserved, o.reserved = o.reserved, v.reserved
}

// Size returns the global number of entries.
func (v *DistributedVector[T]) Size() int {
	v.mustBeInitialized("size")
	return v.globalSize
}

// LocalSize returns the number of entries owned by this worker.
func (v *DistributedVector[T]) LocalSize() int {
	v.mustBeInitialized("local_size")
	return v.localSize
}

// FirstLocalIndex returns the first owned global index.
func (v *DistributedVector[T]) FirstLocalIndex() int {
	v.mustBeInitialized("first_local_index")
	return v.firstLocal
}

// LastLocalIndex returns one past the last owned global index.
func (v *DistributedVector[T]) LastLocalIndex() int {
	v.mustBeInitialized("last_local_index")
	return v.lastLocal
}

// Type returns the resolved layout type.
func (v *DistributedVector[T]) Type() ParallelType { return v.ptype }

// Initialized reports whether Init has completed since the last Clear.
func (v *DistributedVector[T]) Initialized() bool { return v.initialized }

// Closed reports whether Close has been called since the last Init.
func (v *DistributedVector[T]) Closed() bool { return v.closed }

// Communicator returns the communicator the vector is bound to.
func (v *DistributedVector[T]) Communicator() comm.Communicator { return v.comm }

// Owner returns the rank owning global index i, or -1 when i is out of range.
// Every worker holds all entries of a serial vector, so Owner then returns the
// calling rank.
func (v *DistributedVector[T]) Owner(i int) int {
	v.mustBeInitialized("owner")
	if v.replicated() {
		if i < 0 || i >= v.globalSize {
			return -1
		}
		return v.comm.Rank()
	}
	return v.layout.Owner(i)
}

// LocalSizes returns the local size of every rank as recorded by the last Init.
func (v *DistributedVector[T]) LocalSizes() []int {
	v.mustBeInitialized("local_sizes")
	if v.replicated() {
		sizes := make([]int, v.comm.Size())
		for r := range sizes {
			sizes[r] = v.globalSize
		}
		return sizes
	}
	return v.layout.Sizes()
}

// replicated reports whether several workers each hold a full serial copy.
func (v *DistributedVector[T]) replicated() bool {
	return v.ptype == Serial && v.comm.Size() > 1
}

func (v *DistributedVector[T]) mustBeInitialized(op string) {
	if !v.initialized {
		fault(op, ErrNotInitialized, "")
	}
}

// verify cross-checks that every worker is entering the same collective.
// Divergence is a fault; communication failures are returned.
func (v *DistributedVector[T]) verify(ctx context.Context, tag string) error {
	if !v.opts.validate || comm.IsSelf(v.comm) {
		return nil
	}
	err := comm.Verify(ctx, v.comm, tag)
	if err == nil || errors.Is(err, comm.ErrGroupAborted) || !errors.Is(err, comm.ErrMismatch) {
		return err
	}
	fault(tag, ErrCollectiveMismatch, "%v", err)
	return nil
}
