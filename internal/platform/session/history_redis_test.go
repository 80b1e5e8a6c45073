package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/history/usecase"
)

func createTestResult(cycle int64) entity.DecisionResult {
	return entity.DecisionResult{
		Signal:      entity.SignalPositive,
		Cycle:       cycle,
		SessionID:   "session-001",
		FairValue:   150,
		KeyFactors:  []entity.Factor{entity.FactorGoodProfit},
		RiskFactors: []entity.Factor{},
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestNewHistoryRedis(t *testing.T) {
	t.Parallel()

	client, _ := redismock.NewClientMock()

	repo, err := NewHistoryRedis(client, "", usecase.DefaultCapacity, 0)
	require.NoError(t, err)
	assert.NotNil(t, repo.client, "client is nil")
	assert.Equal(t, "history", repo.prefix)
	assert.Equal(t, 24*time.Hour, repo.ttl)

	_, err = NewHistoryRedis(client, "history", 0, time.Hour)
	assert.ErrorIs(t, err, usecase.ErrInvalidCapacity)
}

func TestHistoryRedis_Record(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(mock redismock.ClientMock, data []byte)
		wantErr bool
	}{
		{
			name: "success: push, trim and refresh ttl",
			setup: func(mock redismock.ClientMock, data []byte) {
				mock.ExpectLPush("history:session-001", data).SetVal(1)
				mock.ExpectLTrim("history:session-001", 0, 49).SetVal("OK")
				mock.ExpectExpire("history:session-001", time.Hour).SetVal(true)
			},
		},
		{
			name: "failure: push error",
			setup: func(mock redismock.ClientMock, data []byte) {
				mock.ExpectLPush("history:session-001", data).SetErr(errors.New("connection refused"))
			},
			wantErr: true,
		},
		{
			name: "failure: trim error",
			setup: func(mock redismock.ClientMock, data []byte) {
				mock.ExpectLPush("history:session-001", data).SetVal(51)
				mock.ExpectLTrim("history:session-001", 0, 49).SetErr(errors.New("READONLY"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, mock := redismock.NewClientMock()
			repo, err := NewHistoryRedis(client, "history", 50, time.Hour)
			require.NoError(t, err)

			res := createTestResult(1)
			tt.setup(mock, mustJSON(t, res))

			err = repo.Record(context.Background(), "session-001", res)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHistoryRedis_History(t *testing.T) {
	t.Parallel()

	t.Run("success: newest first", func(t *testing.T) {
		t.Parallel()

		client, mock := redismock.NewClientMock()
		repo, err := NewHistoryRedis(client, "history", 50, time.Hour)
		require.NoError(t, err)

		newer, older := createTestResult(2), createTestResult(1)
		mock.ExpectLRange("history:session-001", 0, 49).SetVal([]string{
			string(mustJSON(t, newer)),
			string(mustJSON(t, older)),
		})

		got, err := repo.History(context.Background(), "session-001")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer, got[0])
		assert.Equal(t, older, got[1])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success: unknown session is empty", func(t *testing.T) {
		t.Parallel()

		client, mock := redismock.NewClientMock()
		repo, err := NewHistoryRedis(client, "history", 50, time.Hour)
		require.NoError(t, err)

		mock.ExpectLRange("history:missing", 0, 49).SetVal([]string{})

		got, err := repo.History(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure: corrupted entry", func(t *testing.T) {
		t.Parallel()

		client, mock := redismock.NewClientMock()
		repo, err := NewHistoryRedis(client, "history", 50, time.Hour)
		require.NoError(t, err)

		mock.ExpectLRange("history:session-001", 0, 49).SetVal([]string{"{broken"})

		_, err = repo.History(context.Background(), "session-001")
		assert.Error(t, err)
	})
}
