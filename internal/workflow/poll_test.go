package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reframe-api/internal/job"
)

func TestWaitForCompletion_Terminal(t *testing.T) {
	rf := &mockReframer{}
	rf.On("Status", mock.Anything, "req").Return(job.StatusReport{Status: job.StatusQueued}, nil).Twice()
	rf.On("Status", mock.Anything, "req").Return(job.StatusReport{Status: job.StatusCompleted, ResultURL: "https://cdn.test/out.mp4"}, nil).Once()

	report, err := WaitForCompletion(context.Background(), rf, "req", fastWait)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, report.Status)
	assert.Equal(t, "req", report.JobID)
	rf.AssertNumberOfCalls(t, "Status", 3)
}

func TestWaitForCompletion_FailedIsTerminal(t *testing.T) {
	rf := &mockReframer{}
	rf.On("Status", mock.Anything, "req").Return(job.StatusReport{Status: job.StatusFailed, ErrorMessage: "boom"}, nil).Once()

	report, err := WaitForCompletion(context.Background(), rf, "req", fastWait)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, report.Status)
	assert.Equal(t, "boom", report.ErrorMessage)
}

func TestWaitForCompletion_Timeout(t *testing.T) {
	rf := &mockReframer{}
	rf.On("Status", mock.Anything, "req").Return(job.StatusReport{Status: job.StatusRunning, Progress: progress(0.4)}, nil)

	start := time.Now()
	report, err := WaitForCompletion(context.Background(), rf, "req", WaitOptions{
		MaxWait:      50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})

	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, job.StatusRunning, report.Status, "last report is returned")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForCompletion_StatusErrorAborts(t *testing.T) {
	rf := &mockReframer{}
	boom := errors.New("status endpoint down")
	rf.On("Status", mock.Anything, "req").Return(job.StatusReport{}, boom).Once()

	_, err := WaitForCompletion(context.Background(), rf, "req", fastWait)
	assert.ErrorIs(t, err, boom)
	rf.AssertNumberOfCalls(t, "Status", 1)
}

func TestWaitForCompletion_ParentCancelled(t *testing.T) {
	rf := &mockReframer{}
	rf.On("Status", mock.Anything, "req").Return(job.StatusReport{Status: job.StatusQueued}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := WaitForCompletion(ctx, rf, "req", WaitOptions{MaxWait: time.Minute, PollInterval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrWaitTimeout)
}

func TestWaitOptions_CheckBounds(t *testing.T) {
	tests := []struct {
		name string
		opts WaitOptions
		ok   bool
	}{
		{"defaults", DefaultWaitOptions(), true},
		{"lower bounds", WaitOptions{MaxWait: 30 * time.Second, PollInterval: 5 * time.Second}, true},
		{"upper bounds", WaitOptions{MaxWait: 600 * time.Second, PollInterval: 30 * time.Second}, true},
		{"wait too short", WaitOptions{MaxWait: 29 * time.Second, PollInterval: 10 * time.Second}, false},
		{"wait too long", WaitOptions{MaxWait: 601 * time.Second, PollInterval: 10 * time.Second}, false},
		{"interval too short", WaitOptions{MaxWait: 300 * time.Second, PollInterval: 4 * time.Second}, false},
		{"interval too long", WaitOptions{MaxWait: 300 * time.Second, PollInterval: 31 * time.Second}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.CheckBounds()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidWaitOptions)
			}
		})
	}
}

func TestWaitOptions_WithDefaults(t *testing.T) {
	got := WaitOptions{PollInterval: time.Second}.withDefaults(DefaultWaitOptions())
	assert.Equal(t, DefaultMaxWait, got.MaxWait)
	assert.Equal(t, time.Second, got.PollInterval)

	got = WaitOptions{}.withDefaults(WaitOptions{})
	assert.Equal(t, DefaultWaitOptions(), got)
}
