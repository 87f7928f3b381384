package tcap

import "context"

// notifierCapacity bounds how many outstanding permits a single stream's
// notifier can hold before a Release is dropped. A memory-copy stream
// needs one permit per response chunk (ceil(buffer_size/1024)); this
// comfortably covers large transfers while keeping the channel allocation
// bounded, unlike an unbounded buffered channel would require.
const notifierCapacity = 1 << 16

// notifier is a per-stream counting semaphore: the receiver task releases
// a permit each time a correlated response lands, the caller acquires the
// number of permits it expects (1 for RequestResponse,
// ceil(buffer_size/chunk_size) for MemoryCopyResponse).
//
// golang.org/x/sync/semaphore.Weighted was considered for this and
// rejected: its Acquire/Release pair models capacity-limiting (Acquire
// consumes free capacity up to a fixed size, Release returns it), the
// inverse of this protocol's producer-signals-before-consumer-waits
// pattern, where Release can run before any Acquire. A small buffered
// channel models that directly.
type notifier struct {
	permits chan struct{}
}

// newNotifier returns a fresh notifier with no outstanding permits.
func newNotifier() *notifier {
	return &notifier{permits: make(chan struct{}, notifierCapacity)}
}

// Release posts one permit. Non-blocking; a full channel means more
// responses arrived than any caller could plausibly be waiting for, so
// the permit is silently dropped rather than blocking the receiver task.
func (n *notifier) Release() {
	select {
	case n.permits <- struct{}{}:
	default:
	}
}

// Acquire blocks until count permits have been released, or ctx is done.
func (n *notifier) Acquire(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		select {
		case <-n.permits:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
