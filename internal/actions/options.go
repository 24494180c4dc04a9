package actions

// BatchProgress describes one completed drain batch.
type BatchProgress struct {
	Batch   int // 1-based
	Removed int
	Total   int // removed so far, including this batch
}

// BatchObserver is called after every drain batch that removed edges.
type BatchObserver func(BatchProgress)

// Option tunes a single CreateAction call.
type Option func(*options)

type options struct {
	batchSize int
	observer  BatchObserver
}

// WithBatchSize overrides the drain batch size. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithBatchObserver reports drain progress of bulk unlinks.
func WithBatchObserver(fn BatchObserver) Option {
	return func(o *options) { o.observer = fn }
}
