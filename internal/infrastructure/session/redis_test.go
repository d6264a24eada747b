package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RedisTestSuite struct {
	suite.Suite
	container testcontainers.Container
	client    *redis.Client
	logger    *slog.Logger
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container tests in short mode")
	}
	suite.Run(t, new(RedisTestSuite))
}

func (suite *RedisTestSuite) SetupSuite() {
	ctx := context.Background()
	t := suite.T()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	suite.container = container
	suite.client = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	suite.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (suite *RedisTestSuite) TearDownSuite() {
	_ = suite.client.Close()
	require.NoError(suite.T(), suite.container.Terminate(context.Background()))
}

func (suite *RedisTestSuite) SetupTest() {
	require.NoError(suite.T(), suite.client.FlushDB(context.Background()).Err())
}

func (suite *RedisTestSuite) Test_Session_SetGetClear() {
	ctx := context.Background()
	t := suite.T()
	store := NewRedisStore(suite.client, time.Minute)
	s := store.Scoped("session-a")

	_, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "key", "order_1"))
	got, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order_1", got)

	ttl, err := suite.client.TTL(ctx, "checkout:session-a:key").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	_, ok, err = store.Scoped("session-b").Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx, "key"))
	_, ok, err = s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (suite *RedisTestSuite) Test_Lock_MutualExclusion() {
	t := suite.T()
	locker := NewRedisLocker(suite.client, 5*time.Second, suite.logger)

	var inside, violations int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			unlock, err := locker.Lock(ctx, "tx:1")
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Zero(t, violations)
}

func (suite *RedisTestSuite) Test_Lock_ReleaseKeepsForeignLock() {
	ctx := context.Background()
	t := suite.T()
	locker := NewRedisLocker(suite.client, 50*time.Millisecond, suite.logger)

	unlock, err := locker.Lock(ctx, "tx:2")
	require.NoError(t, err)

	// our lease expires and someone else takes the lock
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, suite.client.Set(ctx, "lock:tx:2", "other-token", time.Minute).Err())

	unlock()

	val, err := suite.client.Get(ctx, "lock:tx:2").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-token", val)
}

func (suite *RedisTestSuite) Test_Lock_HonoursContext() {
	t := suite.T()
	locker := NewRedisLocker(suite.client, 5*time.Second, suite.logger)

	unlock, err := locker.Lock(context.Background(), "tx:3")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "tx:3")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
