package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"screen-ocr/src/extract"
	"screen-ocr/src/logutil"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("worker pool closed")

// ResultCallback is invoked on extraction completion (from a worker goroutine).
// Callers that own state should post the result back to their own goroutine.
type ResultCallback func(res extract.Result, err error)

// Pool is a fixed-size extraction worker pool with a 1-slot input queue
// (strict back-pressure).
type Pool struct {
	ex   extract.Extractor
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx context.Context
	req extract.Request
	cb  ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, ex extract.Extractor) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{ex: ex, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			log := logutil.Logger().WithField("worker", id)
			for j := range p.jobs {
				log.WithField("path", j.req.Path).Debug("Extraction job started")
				res, err := p.run(j)
				log.WithField("path", j.req.Path).Debugf("Extraction job done, segments=%d, err=%v", len(res.Segments), err)
				if j.cb != nil {
					j.cb(res, err)
				}
			}
		}(i)
	}
}

func (p *Pool) run(j job) (extract.Result, error) {
	if err := j.ctx.Err(); err != nil {
		return extract.Result{}, err
	}
	return p.ex.Extract(j.ctx, j.req)
}

// SubmitWait enqueues a job, waiting for the queue slot until ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, req extract.Request, cb ResultCallback) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job{ctx: ctx, req: req, cb: cb}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
