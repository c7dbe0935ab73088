package observe

import "sync/atomic"

// globalIDCounter is the source of unique IDs for observers, subscribers
// and queued work.
var globalIDCounter uint64

// NextID returns the next unique ID. IDs are monotonically increasing and
// never reused. Packages that implement Subscriber use it to give each
// subscriber a stable identity for deduplication.
func NextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
