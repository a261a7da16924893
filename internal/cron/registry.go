package cron

import "context"

// Job is one unit of scheduled work. Run must be safe to call repeatedly;
// jobs that sweep overdue rows re-check their predicates each time.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in execution order. Nil jobs are dropped at
// registration so the sweep loop never has to check.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy so callers cannot reorder the schedule.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
