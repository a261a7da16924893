package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	denials  int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		f.denials++
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newSweepService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestSweepRunsAllJobsEvenOnFailure(t *testing.T) {
	good := &testJob{name: "good"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	service := newSweepService(t, &fakeLock{}, good, bad)

	if err := service.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if good.runs != 1 {
		t.Fatalf("good job ran %d times, want 1", good.runs)
	}
	if bad.runs != 1 {
		t.Fatalf("bad job ran %d times, want 1", bad.runs)
	}
}

func TestSweepSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &testJob{name: "only"}
	lock := &fakeLock{acquired: true}
	service := newSweepService(t, lock, job)

	if err := service.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock, ran %d", job.runs)
	}
	if lock.denials != 1 {
		t.Fatalf("expected one denied acquire, got %d", lock.denials)
	}
}

func TestSweepReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	service := newSweepService(t, lock, &testJob{name: "noop"})

	if err := service.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if lock.acquired {
		t.Fatalf("lock still held after sweep")
	}
}
