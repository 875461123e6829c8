package sendpushnotification

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
	"academy-notifications/internal/pipeline"
	"academy-notifications/pkg/registry"
)

type MockProcessor struct {
	ProcessFunc func(ctx context.Context, id string) (*pipeline.Result, error)
}

func (m *MockProcessor) Process(ctx context.Context, id string) (*pipeline.Result, error) {
	return m.ProcessFunc(ctx, id)
}

func createTestConfig(t *testing.T) *Config {
	reg, err := registry.Default()
	require.NoError(t, err)
	cfg := LoadConfig(reg.InputSchema(TaskType))
	cfg.Timeout = 5 * time.Second
	return cfg
}

func createMockJob(key int64, variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		Retries:            3,
		Variables:          variables,
	}}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func TestHandler_Execute_Sent(t *testing.T) {
	processor := &MockProcessor{
		ProcessFunc: func(ctx context.Context, id string) (*pipeline.Result, error) {
			assert.Equal(t, "n-1", id)
			return &pipeline.Result{
				NotificationID: id,
				Status:         models.StatusSent,
				RecipientCount: 3,
				SuccessCount:   2,
				FailureCount:   1,
				RemovedTokens:  1,
			}, nil
		},
	}
	h := NewHandler(createTestConfig(t), processor, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{NotificationID: "n-1"})

	require.NoError(t, err)
	assert.Equal(t, "sent", out.Status)
	assert.Equal(t, 3, out.RecipientCount)
	assert.Equal(t, 2, out.SuccessCount)
	assert.Equal(t, 1, out.FailureCount)
	assert.Equal(t, 1, out.RemovedTokens)
}

func TestHandler_Execute_JobTimeoutDoesNotCancelDelivery(t *testing.T) {
	processor := &MockProcessor{
		ProcessFunc: func(ctx context.Context, id string) (*pipeline.Result, error) {
			assert.NoError(t, ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.False(t, hasDeadline)
			return &pipeline.Result{NotificationID: id, Status: models.StatusSent, SuccessCount: 1}, nil
		},
	}
	h := NewHandler(createTestConfig(t), processor, createTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	out, err := h.Execute(ctx, &Input{NotificationID: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "sent", out.Status)
}

func TestHandler_Execute_FailedRecordCompletes(t *testing.T) {
	processor := &MockProcessor{
		ProcessFunc: func(ctx context.Context, id string) (*pipeline.Result, error) {
			return &pipeline.Result{NotificationID: id, Status: models.StatusFailed, Error: "No valid recipients found"}, nil
		},
	}
	h := NewHandler(createTestConfig(t), processor, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{NotificationID: "n-2"})

	require.NoError(t, err)
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, "No valid recipients found", out.Error)
}

func TestHandler_Execute_StoreFault(t *testing.T) {
	processor := &MockProcessor{
		ProcessFunc: func(ctx context.Context, id string) (*pipeline.Result, error) {
			return nil, apperrors.NewRecordStoreError("read", stderrors.New("connection refused"))
		},
	}
	h := NewHandler(createTestConfig(t), processor, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{NotificationID: "n-3"})

	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_MissingID(t *testing.T) {
	h := NewHandler(createTestConfig(t), &MockProcessor{}, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{})

	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidNotificationRequest, stdErr.Code)
}

func TestHandler_ParseInput(t *testing.T) {
	h := NewHandler(createTestConfig(t), &MockProcessor{}, createTestLogger(t))

	input, err := h.parseInput(createMockJob(1, `{"notificationId":"n-4"}`))
	require.NoError(t, err)
	assert.Equal(t, "n-4", input.NotificationID)

	_, err = h.parseInput(createMockJob(2, `{"title":"x"}`))
	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidNotificationRequest, stdErr.Code)
	assert.Contains(t, stdErr.Details, "notificationId")

	_, err = h.parseInput(createMockJob(3, `not json`))
	require.Error(t, err)
}
