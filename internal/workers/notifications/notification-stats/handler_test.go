package notificationstats

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/stats"
)

type MockStatsComputer struct {
	mock.Mock
}

func (m *MockStatsComputer) Compute(ctx context.Context) (*stats.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.Stats), args.Error(1)
}

func createTestHandler(computer StatsComputer) *Handler {
	cfg := LoadConfig(nil)
	cfg.Timeout = time.Second
	return NewHandler(cfg, computer, logger.NewNoOpLogger())
}

func TestHandler_Execute(t *testing.T) {
	computer := new(MockStatsComputer)
	computer.On("Compute", mock.Anything).Return(&stats.Stats{
		Total:           3,
		Sent:            2,
		Failed:          1,
		TotalRecipients: 10,
		TotalSuccessful: 8,
		TotalFailed:     2,
		ByType:          map[string]int{"general_announcement": 2, "course_assignment": 1},
	}, nil)

	out, err := createTestHandler(computer).Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, 3, out.Stats.Total)
	assert.Equal(t, 2, out.Stats.ByType["general_announcement"])
	computer.AssertExpectations(t)
}

func TestHandler_Execute_QueryFailure(t *testing.T) {
	computer := new(MockStatsComputer)
	computer.On("Compute", mock.Anything).Return(nil, stderrors.New("query window: connection refused"))

	_, err := createTestHandler(computer).Execute(context.Background(), &Input{})

	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeStatsQueryFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}
