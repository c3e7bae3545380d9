package classifier

import "context"

// job is one in-flight classify request with its response channel, the
// bounded-queue / worker-pool shape used elsewhere in this stack for
// backpressure against a slow downstream dependency.
type job struct {
	ctx      context.Context
	videoRef string
	resultCh chan<- jobResult
}

type jobResult struct {
	result Result
	err    error
}

// Pool bounds concurrent classifier calls: Workers goroutines drain a
// fixed-capacity queue. When the queue is saturated, Classify blocks on the
// submit until either a slot frees or the caller's context expires -- the
// latter is how "Tier-2 requests wait up to the classifier timeout" before
// surfacing tier_2_score=null.
type Pool struct {
	underlying Classifier
	jobs       chan job
}

func NewPool(underlying Classifier, queueSize, workers int) *Pool {
	p := &Pool{
		underlying: underlying,
		jobs:       make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for j := range p.jobs {
		result, err := p.underlying.Classify(j.ctx, j.videoRef)
		select {
		case j.resultCh <- jobResult{result: result, err: err}:
		case <-j.ctx.Done():
		}
	}
}

func (p *Pool) Classify(ctx context.Context, videoRef string) (Result, error) {
	resultCh := make(chan jobResult, 1)

	select {
	case p.jobs <- job{ctx: ctx, videoRef: videoRef, resultCh: resultCh}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case r := <-resultCh:
		return r.result, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
