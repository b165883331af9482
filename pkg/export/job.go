package export

import "context"

// Job is an export running in the background.
type Job struct {
	done   chan struct{}
	cancel context.CancelFunc
	result *Result
	err    error
}

// Start runs req on a new goroutine. The request is immutable, so the caller
// may keep editing its store while the job runs.
func (r *Runner) Start(ctx context.Context, req *Request, opts Options) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(j.done)
		defer cancel()
		j.result, j.err = r.Run(ctx, req, opts)
	}()
	return j
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel asks the job to stop. A canceled job yields no result.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job finishes and returns its outcome.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	return j.result, j.err
}
