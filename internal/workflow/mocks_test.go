package workflow

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maauso/reframe-api/internal/job"
	"github.com/maauso/reframe-api/internal/uploader"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, req uploader.Request) (uploader.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uploader.Result), args.Error(1)
}

func (m *mockUploader) Healthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type mockReframer struct {
	mock.Mock
}

func (m *mockReframer) Submit(ctx context.Context, req job.SubmitRequest) (job.Submission, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(job.Submission), args.Error(1)
}

func (m *mockReframer) Status(ctx context.Context, jobID string) (job.StatusReport, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(job.StatusReport), args.Error(1)
}

type stubInspector struct {
	width, height int
	err           error
}

func (s stubInspector) Dimensions(_ context.Context, _ string, _ []byte) (int, int, error) {
	return s.width, s.height, s.err
}
