package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lumia-advisor/internal/engine"
	"lumia-advisor/internal/worker/config"
	"lumia-advisor/internal/worker/dto"
	"lumia-advisor/pkg/common"
	"lumia-advisor/pkg/logger"
	"lumia-advisor/pkg/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var signalUnitsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "signal_units_processed_total",
	Help: "Signal generation units consumed from the stream, by outcome.",
}, []string{"outcome"})

// SignalWorkerService consumes queued (asset, date) units and runs the
// signal aggregator for each one.
type SignalWorkerService interface {
	ProcessTask(ctx context.Context)
	ProcessRetries(ctx context.Context)
}

type signalWorkerService struct {
	cfg         *config.Config
	log         *logger.Logger
	redisClient *redis.Client
	aggregator  *engine.SignalAggregator
	telegramBot telegram.Notifier
}

func NewSignalWorkerService(
	cfg *config.Config,
	log *logger.Logger,
	redisClient *redis.Client,
	aggregator *engine.SignalAggregator,
	telegramBot telegram.Notifier,
) SignalWorkerService {
	return &signalWorkerService{
		cfg:         cfg,
		log:         log,
		redisClient: redisClient,
		aggregator:  aggregator,
		telegramBot: telegramBot,
	}
}

func (s *signalWorkerService) ProcessTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamSignalGeneration, ">"}, // ">" means only new messages
		Count:    1,
		Block:    2 * time.Second, // Block briefly to allow graceful shutdown
	}).Result()
	if err != nil {
		// Context cancellation and empty reads are expected during
		// shutdown or idle periods.
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.log.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}

	message := streams[0].Messages[0]

	streamData, err := decodePayload(message)
	if err != nil {
		s.log.Error("Failed to decode stream message", logger.ErrorField(err), logger.Field("message_id", message.ID))
		signalUnitsProcessedTotal.WithLabelValues("invalid").Inc()
		// Poison payloads can never succeed, drop them immediately.
		if err := s.AckNDel(ctx, message.ID); err != nil {
			s.log.Error("Failed to drop invalid message", logger.ErrorField(err), logger.Field("message_id", message.ID))
		}
		return
	}

	if err := s.generate(ctx, streamData); err != nil {
		s.log.Error("Failed to generate signal",
			logger.ErrorField(err),
			logger.Field("message_id", message.ID),
			logger.StringField("symbol", streamData.Symbol),
			logger.StringField("date", streamData.Date))
		signalUnitsProcessedTotal.WithLabelValues("failed").Inc()
		return
	}
	if err := s.AckNDel(ctx, message.ID); err != nil {
		s.log.Error("Failed to acknowledge signal unit", logger.ErrorField(err), logger.Field("message_id", message.ID))
		return
	}
	signalUnitsProcessedTotal.WithLabelValues("ok").Inc()

	s.log.Debug("Signal unit processed",
		logger.StringField("symbol", streamData.Symbol),
		logger.StringField("date", streamData.Date))
}

func (s *signalWorkerService) generate(ctx context.Context, streamData *dto.StreamDataSignalGeneration) error {
	date, err := time.Parse("2006-01-02", streamData.Date)
	if err != nil {
		return fmt.Errorf("parse unit date: %w", err)
	}
	_, err = s.aggregator.GenerateForDate(ctx, streamData.AssetID, date)
	return err
}

func (s *signalWorkerService) AckNDel(ctx context.Context, messageID string) error {
	if err := s.redisClient.XAck(ctx, common.RedisStreamSignalGeneration, common.RedisStreamGroup, messageID).Err(); err != nil {
		return err
	}
	if err := s.redisClient.XDel(ctx, common.RedisStreamSignalGeneration, messageID).Err(); err != nil {
		return err
	}
	return nil
}

// ProcessRetries reclaims units that stalled mid-processing. Units past
// the retry cap are dropped with an operator alert instead of poisoning
// the stream forever.
func (s *signalWorkerService) ProcessRetries(ctx context.Context) {
	msgs, _, err := s.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   common.RedisStreamSignalGeneration,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  s.cfg.Worker.StreamMaxIdleDuration,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to claim signal unit on retry", logger.ErrorField(err))
		return
	}

	if len(msgs) == 0 {
		return
	}

	msg := msgs[0]

	pendingInfo, err := s.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamSignalGeneration,
		Group:  common.RedisStreamGroup,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to get pending info", logger.ErrorField(err))
		return
	}
	if len(pendingInfo) == 0 {
		s.log.Warn("pending msg not found, but exists on xautoclaim",
			logger.StringField("message_id", msg.ID))
		return
	}

	streamData, err := decodePayload(msg)
	if err != nil {
		s.log.Error("Failed to decode stream message on retry", logger.ErrorField(err), logger.Field("message_id", msg.ID))
		if err := s.AckNDel(ctx, msg.ID); err != nil {
			s.log.Error("Failed to drop invalid message on retry", logger.ErrorField(err), logger.Field("message_id", msg.ID))
		}
		return
	}

	if pendingInfo[0].RetryCount >= int64(s.cfg.Worker.StreamMaxRetry) {
		s.log.Error("signal unit retry count exceeded",
			logger.StringField("message_id", msg.ID),
			logger.StringField("symbol", streamData.Symbol),
			logger.StringField("date", streamData.Date),
			logger.IntField("retry_count", int(pendingInfo[0].RetryCount)),
			logger.IntField("max_retry", s.cfg.Worker.StreamMaxRetry))
		signalUnitsProcessedTotal.WithLabelValues("dropped").Inc()

		alert := telegram.FormatErrorAlertMessage(time.Now(),
			fmt.Sprintf("Signal generation retry count exceeded for %s on %s", streamData.Symbol, streamData.Date))
		if err := s.telegramBot.SendMessage(alert); err != nil {
			s.log.Error("Failed to send retry-exceeded alert", logger.ErrorField(err), logger.StringField("symbol", streamData.Symbol))
		}
		if err := s.AckNDel(ctx, msg.ID); err != nil {
			s.log.Error("Failed to drop exhausted signal unit", logger.ErrorField(err), logger.Field("message_id", msg.ID))
		}
		return
	}

	if err := s.generate(ctx, streamData); err != nil {
		s.log.Error("Failed to generate signal on retry",
			logger.ErrorField(err),
			logger.Field("message_id", msg.ID),
			logger.StringField("symbol", streamData.Symbol),
			logger.StringField("date", streamData.Date))
		signalUnitsProcessedTotal.WithLabelValues("failed").Inc()
		return
	}
	if err := s.AckNDel(ctx, msg.ID); err != nil {
		s.log.Error("Failed to acknowledge signal unit on retry", logger.ErrorField(err), logger.Field("message_id", msg.ID))
		return
	}
	signalUnitsProcessedTotal.WithLabelValues("retried").Inc()
}

func decodePayload(msg redis.XMessage) (*dto.StreamDataSignalGeneration, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("field 'payload' not found or not a string")
	}
	var streamData dto.StreamDataSignalGeneration
	if err := json.Unmarshal([]byte(raw), &streamData); err != nil {
		return nil, err
	}
	return &streamData, nil
}
