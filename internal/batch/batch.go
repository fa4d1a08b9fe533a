// Package batch fans ordered work out to a bounded pool of workers and
// reassembles the per-chunk results in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

var ErrInvalidOptions = errors.New("invalid batch options")

// Chunk is a contiguous slice of the input tagged with its position.
type Chunk[T any] struct {
	Index int
	Units []T
}

// Outcome is the settled result of one chunk. A chunk failed iff Err is set,
// in which case Records is empty.
type Outcome[R any] struct {
	Index   int
	Records []R
	Err     error
}

func (o Outcome[R]) Failed() bool { return o.Err != nil }

// Func processes one chunk. Returned errors are contained by the runner.
type Func[T, R any] func(ctx context.Context, chunk Chunk[T]) ([]R, error)

type Options struct {
	ChunkSize  int
	MaxWorkers int
}

// Result is the aggregate of a run. Records is the concatenation of every
// successful chunk's records in ascending chunk index.
type Result[R any] struct {
	Records   []R
	Outcomes  []Outcome[R]
	Workers   int
	Succeeded int
	Failed    int
}

// Partition splits units into chunks of at most size, preserving order.
func Partition[T any](units []T, size int) ([]Chunk[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidOptions, size)
	}

	chunks := make([]Chunk[T], 0, (len(units)+size-1)/size)
	for start := 0; start < len(units); start += size {
		end := min(start+size, len(units))
		chunks = append(chunks, Chunk[T]{Index: len(chunks), Units: units[start:end]})
	}
	return chunks, nil
}

// Run processes units in chunks on min(MaxWorkers, chunks) workers and
// blocks until every chunk has settled. Chunk failures, including panics,
// become failed outcomes and never stop sibling chunks. The only error
// returned is for invalid options.
func Run[T, R any](ctx context.Context, units []T, opts Options, fn Func[T, R], l logger.Logger) (Result[R], error) {
	if opts.MaxWorkers < 1 {
		return Result[R]{}, fmt.Errorf("%w: max workers %d", ErrInvalidOptions, opts.MaxWorkers)
	}
	chunks, err := Partition(units, opts.ChunkSize)
	if err != nil {
		return Result[R]{}, err
	}
	if len(chunks) == 0 {
		l.Info(ctx, "Nothing to process")
		return Result[R]{}, nil
	}

	workers := min(opts.MaxWorkers, len(chunks))
	l.Info(ctx, "Created %d batches (batch size = %d), running %d workers", len(chunks), opts.ChunkSize, workers)

	jobs := make(chan Chunk[T])
	col := newCollector[R](len(chunks))

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for c := range jobs {
				o := runChunk(ctx, c, fn)
				done := col.store(o)
				if o.Failed() {
					l.Warn(ctx, "[%d/%d] Batch %d failed: %v", done, len(chunks), c.Index+1, o.Err)
				} else {
					l.Info(ctx, "[%d/%d] Batch %d completed (%d records)", done, len(chunks), c.Index+1, len(o.Records))
				}
			}
			return nil
		})
	}

	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)
	_ = g.Wait()

	res := col.reassemble()
	res.Workers = workers
	l.Info(ctx, "Batch run complete: %d succeeded, %d failed, %d records", res.Succeeded, res.Failed, len(res.Records))
	return res, nil
}

func runChunk[T, R any](ctx context.Context, c Chunk[T], fn Func[T, R]) (o Outcome[R]) {
	o.Index = c.Index
	defer func() {
		if r := recover(); r != nil {
			o.Records = nil
			o.Err = fmt.Errorf("panic in batch %d: %v\n%s", c.Index+1, r, debug.Stack())
		}
	}()

	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}

	records, err := fn(ctx, c)
	if err != nil {
		o.Err = err
		return o
	}
	o.Records = records
	return o
}

// collector is the index-keyed outcome store shared by the workers. Each
// index is written by exactly one worker.
type collector[R any] struct {
	mu       sync.Mutex
	total    int
	outcomes map[int]Outcome[R]
}

func newCollector[R any](total int) *collector[R] {
	return &collector[R]{total: total, outcomes: make(map[int]Outcome[R], total)}
}

// store records o and returns how many chunks have settled so far.
func (c *collector[R]) store(o Outcome[R]) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[o.Index] = o
	return len(c.outcomes)
}

func (c *collector[R]) reassemble() Result[R] {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result[R]{Outcomes: make([]Outcome[R], 0, c.total)}
	for i := 0; i < c.total; i++ {
		o := c.outcomes[i]
		res.Outcomes = append(res.Outcomes, o)
		if o.Failed() {
			res.Failed++
			continue
		}
		res.Succeeded++
		res.Records = append(res.Records, o.Records...)
	}
	return res
}
