package blobstore

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/distvec/resource"
)

// CachingStore wraps a Store and keeps whole blobs in an LRU cache.
//
// Workers of an in-process group that load a checkpoint onto a different
// partition read overlapping parts; with a CachingStore every part is fetched
// from the inner store once. Concurrent misses on the same blob share one
// fetch. Put, Create and Delete invalidate the cached copy.
type CachingStore struct {
	inner    Store
	rc       *resource.Controller
	group    singleflight.Group
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	lru      *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Store = (*CachingStore)(nil)

type cacheEntry struct {
	name string
	data []byte
}

// NewCachingStore creates a CachingStore holding at most capacity bytes.
// If rc is non-nil, cached bytes are also charged against its memory limit;
// blobs that do not fit are served without being cached.
func NewCachingStore(inner Store, capacity int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		inner:    inner,
		rc:       rc,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Open returns the cached blob or fetches it whole from the inner store.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if data, ok := s.get(name); ok {
		s.hits.Add(1)
		return &memoryBlob{data: data}, nil
	}
	s.misses.Add(1)

	v, err, _ := s.group.Do(name, func() (any, error) {
		data, err := Get(ctx, s.inner, name)
		if err != nil {
			return nil, err
		}
		s.set(name, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return &memoryBlob{data: v.([]byte)}, nil
}

// Create passes through to the inner store. The cached copy is dropped now
// and again when the new blob is published.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingWriter{WritableBlob: w, done: func() { s.invalidate(name) }}, nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	defer s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	defer s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns the number of cache hits and misses of Open.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Size returns the number of cached bytes.
func (s *CachingStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *CachingStore) get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[name]; ok {
		s.lru.MoveToFront(el)
		return el.Value.(*cacheEntry).data, true
	}
	return nil, false
}

func (s *CachingStore) set(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[name]; ok {
		s.remove(el)
	}
	n := int64(len(data))
	if n > s.capacity {
		return
	}
	for s.size+n > s.capacity {
		s.remove(s.lru.Back())
	}
	if !s.rc.TryAcquireMemory(n) {
		return
	}
	s.items[name] = s.lru.PushFront(&cacheEntry{name: name, data: data})
	s.size += n
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[name]; ok {
		s.remove(el)
	}
}

func (s *CachingStore) remove(el *list.Element) {
	e := s.lru.Remove(el).(*cacheEntry)
	delete(s.items, e.name)
	n := int64(len(e.data))
	s.size -= n
	s.rc.ReleaseMemory(n)
}

// invalidatingWriter calls done after the blob is published or aborted.
type invalidatingWriter struct {
	WritableBlob
	done func()
}

func (w *invalidatingWriter) Close() error {
	defer w.done()
	return w.WritableBlob.Close()
}

func (w *invalidatingWriter) Abort() error {
	defer w.done()
	return Abort(w.WritableBlob)
}
