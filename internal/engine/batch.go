package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BatchItem is the outcome of one request in a batch. Exactly one of
// Response and Err is set.
type BatchItem struct {
	Index    int       `json:"index" yaml:"index"`
	Response *Response `json:"result,omitempty" yaml:"result,omitempty"`
	Err      *Error    `json:"error,omitempty" yaml:"error,omitempty"`
}

// classifyJob is a unit of work for the worker pool.
type classifyJob struct {
	index int
	req   Request
}

// ClassifyStream classifies reqs on a fixed pool of workers, all evaluated
// at now, and delivers items in completion order. The channel is closed once
// every worker has stopped. After ctx is cancelled no new jobs are started
// and undelivered items are dropped.
func (e *Engine) ClassifyStream(ctx context.Context, reqs []Request, now time.Time, workers int) <-chan BatchItem {
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) && len(reqs) > 0 {
		workers = len(reqs)
	}

	jobs := make(chan classifyJob, workers*2)
	results := make(chan BatchItem, workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				item := e.classifyOne(job, now)
				select {
				case results <- item:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, req := range reqs {
			select {
			case jobs <- classifyJob{index: i, req: req}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// ClassifyBatch is ClassifyStream collected back into request order. When
// ctx is cancelled the items not yet classified are reported as Canceled and
// ctx.Err() is returned.
func (e *Engine) ClassifyBatch(ctx context.Context, reqs []Request, now time.Time, workers int) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	items := make([]BatchItem, len(reqs))
	done := make([]bool, len(reqs))

	var okCount, errCount int
	for item := range e.ClassifyStream(ctx, reqs, now, workers) {
		items[item.Index] = item
		done[item.Index] = true
		if item.Err != nil {
			errCount++
		} else {
			okCount++
		}
	}

	var err error
	for i := range items {
		if done[i] {
			continue
		}
		err = ctx.Err()
		items[i] = BatchItem{Index: i, Err: &Error{Kind: Canceled, Message: err.Error(), Err: err}}
	}

	e.logger.Info("batch classified",
		"items", len(reqs),
		"succeeded", okCount,
		"failed", errCount,
	)
	return items, err
}

func (e *Engine) classifyOne(job classifyJob, now time.Time) BatchItem {
	resp, err := e.Classify(job.req, now)
	if err != nil {
		var ee *Error
		if !errors.As(err, &ee) {
			ee = &Error{Kind: ClassificationError, Message: err.Error(), Err: err}
		}
		return BatchItem{Index: job.index, Err: ee}
	}
	return BatchItem{Index: job.index, Response: resp}
}
