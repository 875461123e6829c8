package cleanupinvalidtokens

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/maintenance"
)

type MockTokenSweeper struct {
	SweepFunc func(ctx context.Context) (*maintenance.TokenSweepResult, error)
}

func (m *MockTokenSweeper) Sweep(ctx context.Context) (*maintenance.TokenSweepResult, error) {
	return m.SweepFunc(ctx)
}

func TestHandler_Execute(t *testing.T) {
	sweeper := &MockTokenSweeper{
		SweepFunc: func(ctx context.Context) (*maintenance.TokenSweepResult, error) {
			return &maintenance.TokenSweepResult{CheckedTokens: 1200, RemovedTokens: 14, FailedBatches: 1}, nil
		},
	}
	h := NewHandler(LoadConfig(nil), sweeper, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, &Output{Success: true, CheckedTokens: 1200, RemovedTokens: 14, FailedBatches: 1}, out)
}

func TestHandler_Execute_Failure(t *testing.T) {
	sweeper := &MockTokenSweeper{
		SweepFunc: func(ctx context.Context) (*maintenance.TokenSweepResult, error) {
			return nil, apperrors.NewTokenSweepError(stderrors.New("user store unavailable"))
		},
	}
	h := NewHandler(LoadConfig(nil), sweeper, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{})

	assert.Nil(t, out)
	var stdErr *apperrors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeTokenSweepFailed, stdErr.Code)
}
