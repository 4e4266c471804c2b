package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a type-safe sync.Pool that resets objects on Put and tracks usage.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. reset is optional and runs before an object is pooled.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get returns a pooled object, allocating one when the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated, currently checked out,
// and the total number of Get calls.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// RecordMetadata says where a record came from.
type RecordMetadata struct {
	// Source is the name of the source plugin
	Source string `json:"source,omitempty"`
	// Split is the index of the split task that read the record
	Split int `json:"split"`
	// Timestamp is when the record was read
	Timestamp time.Time `json:"timestamp"`
}

// Record is one row read from a source. Data holds column values keyed by
// field name after any case conversion.
type Record struct {
	Data     map[string]interface{} `json:"data"`
	Metadata RecordMetadata         `json:"metadata"`
}

var (
	// RecordPool recycles records together with their data maps.
	RecordPool = New(
		func() *Record {
			return &Record{Data: make(map[string]interface{}, 16)}
		},
		func(r *Record) {
			for k := range r.Data {
				delete(r.Data, k)
			}
			r.Metadata = RecordMetadata{}
		},
	)

	// BufferPool recycles encoding buffers.
	BufferPool = New(
		func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
		func(b *bytes.Buffer) { b.Reset() },
	)
)

// GetRecord returns an empty record stamped with the current time.
func GetRecord() *Record {
	r := RecordPool.Get()
	if r.Data == nil {
		r.Data = make(map[string]interface{}, 16)
	}
	r.Metadata.Timestamp = time.Now()
	return r
}

// NewRecord returns an empty record attributed to source and split.
func NewRecord(source string, split int) *Record {
	r := GetRecord()
	r.Metadata.Source = source
	r.Metadata.Split = split
	return r
}

// PutRecord returns r to the pool. It is safe to call with nil.
func PutRecord(r *Record) {
	if r != nil {
		RecordPool.Put(r)
	}
}

// Release returns the record to the pool. The record must not be used afterwards.
func (r *Record) Release() {
	PutRecord(r)
}

// SetData sets a field value.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = make(map[string]interface{}, 16)
	}
	r.Data[key] = value
}

// GetData returns a field value and whether it is present.
func (r *Record) GetData(key string) (interface{}, bool) {
	v, ok := r.Data[key]
	return v, ok
}
