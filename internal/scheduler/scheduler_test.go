package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadOptions(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name string
		job  Job
		opts Options
	}{
		{"nil job", nil, Options{Interval: time.Minute}},
		{"zero interval", noop, Options{}},
		{"sub-second interval", noop, Options{Interval: 10 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.job, tt.opts, nil)
			assert.Error(t, err)
		})
	}
}

func TestSpec(t *testing.T) {
	s, err := New(func(context.Context) error { return nil }, Options{Interval: 60 * time.Minute}, nil)
	require.NoError(t, err)
	assert.Equal(t, "@every 1h0m0s", s.Spec())
}

func TestStart_RunsOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, Options{Interval: time.Hour, RunOnStart: true}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("initial cycle did not run")
	}
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), time.Minute)
	assert.Error(t, s.Start(context.Background()), "second start must fail")
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New(func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	}, Options{Interval: time.Hour}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.wrapped.Run()
	}()
	<-started

	// a tick during the running cycle returns immediately without calling the job
	s.wrapped.Run()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunOnce_AppliesTimeout(t *testing.T) {
	got := make(chan error, 1)
	s, err := New(func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	}, Options{Interval: time.Hour, Timeout: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	s.wrapped.Run()
	assert.True(t, errors.Is(<-got, context.DeadlineExceeded))
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	s, err := New(func(context.Context) error { panic("boom") }, Options{Interval: time.Hour}, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.wrapped.Run() })
}

func TestStop_CancelsRunningCycle(t *testing.T) {
	started := make(chan struct{})
	s, err := New(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, Options{Interval: time.Hour, RunOnStart: true}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	<-started
	s.Stop()
	assert.True(t, s.Next().IsZero())
}

func TestRun_ReturnsWhenContextCanceled(t *testing.T) {
	s, err := New(func(context.Context) error { return nil }, Options{Interval: time.Hour}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
