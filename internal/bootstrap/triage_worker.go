package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"triage_server/adapter/in/worker"
	"triage_server/adapter/out/messaging"
	"triage_server/config"
	"triage_server/pkg/logger"

	"github.com/rs/zerolog"
)

const consumerGroup = "triage-workers"

type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := logger.Default().Zerolog().With().Str("component", "worker").Logger()

	handler := worker.NewHandler(worker.NewIngestProcessor(deps.TriageService))

	poolConfig := worker.DefaultPoolConfig()
	poolConfig.Workers = cfg.WorkerMax
	poolConfig.JobTimeout = time.Duration(cfg.WorkerJobTimeoutSec) * time.Second
	poolConfig.JobTimeoutByType[worker.JobEmailIngest] = poolConfig.JobTimeout
	// seeding runs several ingests back to back
	poolConfig.JobTimeoutByType[worker.JobEmailSamples] = 5 * poolConfig.JobTimeout

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		pool:   worker.NewPool(handler, poolConfig, zlog),
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Redis != nil {
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:                consumerGroup,
			Consumer:             cfg.WorkerID,
			Streams:              []string{messaging.StreamIngest, messaging.StreamSamples},
			Handler:              &streamHandler{worker: w},
			Logger:               zlog,
			BatchSize:            cfg.ConsumerBatchSize,
			Block:                time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
			PendingCheckInterval: time.Duration(cfg.ConsumerRetryDelaySec) * time.Second,
			MaxRetries:           cfg.ConsumerMaxRetries,
		})
		logger.Info("Redis Stream Consumer configured for %s, %s", messaging.StreamIngest, messaging.StreamSamples)
	} else {
		logger.Warn("Redis not available, worker has no streams to consume")
	}

	return w, cleanup, nil
}

// streamHandler adapts Redis Stream entries to pool messages.
type streamHandler struct {
	worker *Worker
}

func (h *streamHandler) Handle(ctx context.Context, stream string, data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Error("[StreamHandler] Failed to parse payload from %s: %v", stream, err)
		return err
	}

	jobType, err := streamToJobType(stream)
	if err != nil {
		return err
	}

	msg := worker.NewMessage(jobType, payload)
	if !h.worker.pool.Submit(msg) {
		// stays pending in the stream and is reclaimed later
		return fmt.Errorf("pool rejected job %s from %s", msg.ID, stream)
	}

	logger.Debug("[StreamHandler] Job submitted to pool: %s", jobType)
	return nil
}

func streamToJobType(stream string) (string, error) {
	switch stream {
	case messaging.StreamIngest:
		return worker.JobEmailIngest, nil
	case messaging.StreamSamples:
		return worker.JobEmailSamples, nil
	default:
		return "", fmt.Errorf("no job type for stream %q", stream)
	}
}

// Start blocks until Stop is called.
func (w *Worker) Start() {
	if err := w.pool.Start(); err != nil {
		w.zlog.Error().Err(err).Msg("failed to start worker pool")
		return
	}

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Msg("Starting Redis Stream Consumer...")
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
			}
		}()
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.pool.Stop()
}
