package consumer

import (
	"context"
	"strings"
	"sync"
	"time"

	"lumia-advisor/internal/worker/config"
	"lumia-advisor/internal/worker/service"
	"lumia-advisor/pkg/common"
	"lumia-advisor/pkg/logger"
	"lumia-advisor/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisConsumer manages consumption of signal generation units from the
// Redis stream.
type RedisConsumer struct {
	cfg           *config.Config
	redisClient   *redis.Client
	workerService service.SignalWorkerService
	logger        *logger.Logger
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	workerService service.SignalWorkerService,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:           cfg,
		redisClient:   redisClient,
		workerService: workerService,
		logger:        log,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the consumer's processing loop.
func (c *RedisConsumer) Start(ctx context.Context) {
	if err := c.redisClient.XGroupCreateMkStream(ctx, common.RedisStreamSignalGeneration, common.RedisStreamGroup, "0").Err(); err != nil {
		if !strings.Contains(err.Error(), "BUSYGROUP") {
			c.logger.Error("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.workerService.ProcessTask, common.RedisStreamSignalGeneration, c.cfg.Worker.StreamReadTimeout)
	c.RegisterTickerHandler(ctx, c.workerService.ProcessRetries, c.cfg.Worker.StreamRetryInterval, c.cfg.Worker.StreamMaxIdleDuration, common.RedisStreamSignalGeneration+"-retry")
}

func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.Field("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			}
		}
	})
}

func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.Field("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.Field("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.Field("name", name))
				return
			}
		}
	})
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
