package service

import (
	"context"
	"encoding/json"
	"time"

	"lumia-advisor/internal/entity"
	"lumia-advisor/internal/repository"
	"lumia-advisor/internal/worker/config"
	"lumia-advisor/internal/worker/dto"
	"lumia-advisor/pkg/common"
	"lumia-advisor/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_batch_runs_total",
		Help: "Signal batch sweeps started, by final status.",
	}, []string{"status"})
	signalsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_units_enqueued_total",
		Help: "Individual (asset, date) units published to the stream.",
	})
)

// SchedulerService runs the periodic signal sweep: each tick enqueues one
// stream message per (asset, date) unit so failures stay isolated and the
// batch is resumable.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	// EnqueueBatch publishes the sweep for the given reference date
	// immediately, outside the cron schedule.
	EnqueueBatch(ctx context.Context, refDate time.Time) (*entity.SignalBatchRun, error)
}

type schedulerService struct {
	cfg         *config.Config
	assets      repository.AssetRepository
	batchRuns   repository.BatchRunRepository
	redisClient *redis.Client
	log         *logger.Logger
	cron        *cron.Cron
}

func NewSchedulerService(
	cfg *config.Config,
	assets repository.AssetRepository,
	batchRuns repository.BatchRunRepository,
	redisClient *redis.Client,
	log *logger.Logger,
) SchedulerService {
	return &schedulerService{
		cfg:         cfg,
		assets:      assets,
		batchRuns:   batchRuns,
		redisClient: redisClient,
		log:         log,
		cron:        cron.New(),
	}
}

func (s *schedulerService) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Worker.CronSchedule, func() {
		refDate := time.Now().UTC().Truncate(24 * time.Hour)
		if _, err := s.EnqueueBatch(ctx, refDate); err != nil {
			s.log.Error("scheduled signal sweep failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("signal sweep scheduler started",
		logger.StringField("cron", s.cfg.Worker.CronSchedule),
		logger.IntField("backfill_days", s.cfg.Worker.BackfillDays))
	return nil
}

func (s *schedulerService) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("signal sweep scheduler stopped")
}

func (s *schedulerService) EnqueueBatch(ctx context.Context, refDate time.Time) (*entity.SignalBatchRun, error) {
	assets, err := s.assets.FindActive(ctx)
	if err != nil {
		batchRunsTotal.WithLabelValues(entity.BatchRunStatusFailed).Inc()
		return nil, err
	}

	run := &entity.SignalBatchRun{
		Date:        refDate,
		Status:      entity.BatchRunStatusRunning,
		TotalAssets: len(assets),
		StartedAt:   time.Now().UTC(),
	}
	if err := s.batchRuns.Create(ctx, run); err != nil {
		batchRunsTotal.WithLabelValues(entity.BatchRunStatusFailed).Inc()
		return nil, err
	}

	var enqueued, failed int
	for _, asset := range assets {
		for offset := s.cfg.Worker.BackfillDays - 1; offset >= 0; offset-- {
			date := refDate.AddDate(0, 0, -offset)
			if err := s.enqueueUnit(ctx, asset, date); err != nil {
				failed++
				s.log.Error("failed to enqueue signal unit",
					logger.StringField("symbol", asset.Symbol),
					logger.StringField("date", date.Format("2006-01-02")),
					logger.ErrorField(err))
				continue
			}
			enqueued++
			signalsEnqueuedTotal.Inc()
		}
	}

	stats, _ := json.Marshal(map[string]int{"enqueued": enqueued, "failed": failed})
	run.Stats = stats
	run.Status = entity.BatchRunStatusCompleted
	if failed > 0 && enqueued == 0 {
		run.Status = entity.BatchRunStatusFailed
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if err := s.batchRuns.Update(ctx, run); err != nil {
		s.log.Error("failed to finalize batch run", logger.ErrorField(err), logger.IntField("run_id", int(run.ID)))
	}
	batchRunsTotal.WithLabelValues(run.Status).Inc()

	s.log.Info("signal sweep enqueued",
		logger.IntField("assets", len(assets)),
		logger.IntField("enqueued", enqueued),
		logger.IntField("failed", failed))
	return run, nil
}

func (s *schedulerService) enqueueUnit(ctx context.Context, asset entity.Asset, date time.Time) error {
	payload, err := json.Marshal(dto.StreamDataSignalGeneration{
		AssetID: asset.ID,
		Symbol:  asset.Symbol,
		Date:    date.Format("2006-01-02"),
	})
	if err != nil {
		return err
	}

	return s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamSignalGeneration,
		Values: map[string]interface{}{"payload": string(payload)},
		MaxLen: s.cfg.Redis.StreamMaxLen, // Limit the stream size
	}).Err()
}
