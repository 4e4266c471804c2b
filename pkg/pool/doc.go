// Package pool provides typed object pooling for the records that flow from
// a source to a sink.
//
// Records come from the global RecordPool and go back with Release once the
// sink has encoded them:
//
//	record := pool.NewRecord("orders-source", 3)
//	defer record.Release()
//	record.SetData("id", int64(42))
//
// Pool[T] wraps sync.Pool with a reset hook and usage statistics, and is
// usable for any type:
//
//	buffers := pool.New(
//		func() *bytes.Buffer { return new(bytes.Buffer) },
//		func(b *bytes.Buffer) { b.Reset() },
//	)
package pool
