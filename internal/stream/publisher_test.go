package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

// MockRedisClient is a mock for the Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func sampleRecords() []rank.RankRecord {
	ts := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	return []rank.RankRecord{
		{
			Timestamp: ts, Keyword: "widget", ASIN: "B001ABC123",
			Placement: rank.PlacementOrganic, Page: 1, PositionOnPage: 6,
			OverallRank: 6, OrganicRank: 6, Status: rank.StatusFound,
		},
		{
			Timestamp: ts, Keyword: "widget", ASIN: "B002DEF456",
			Status: rank.StatusNotFound,
		},
	}
}

func TestPublishRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes one entry per record", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Stream == "stream:rank_records" &&
				args.Values.(map[string]interface{})["keyword"] == "widget"
		})).Return(nil).Twice()

		p := NewPublisher(mockRedis, "", nil)
		err := p.PublishRecords(ctx, uuid.New(), sampleRecords())

		require.NoError(t, err)
		mockRedis.AssertExpectations(t)
	})

	t.Run("propagates redis errors", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused"))

		p := NewPublisher(mockRedis, "stream:test", nil)
		err := p.PublishRecords(ctx, uuid.New(), sampleRecords())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "B001ABC123")
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		mockRedis := new(MockRedisClient)

		p := NewPublisher(mockRedis, "stream:test", nil)
		err := p.PublishRecords(ctx, uuid.New(), nil)

		require.NoError(t, err)
		mockRedis.AssertNotCalled(t, "XAdd")
	})
}
