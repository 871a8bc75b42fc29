package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/convo-platform/internal/activity"
	"github.com/suPer8Hu/convo-platform/internal/ai"
	"github.com/suPer8Hu/convo-platform/internal/config"
	"github.com/suPer8Hu/convo-platform/internal/conversation"
	"github.com/suPer8Hu/convo-platform/internal/db"
	"github.com/suPer8Hu/convo-platform/internal/logging"
	"github.com/suPer8Hu/convo-platform/internal/store/rabbitmq"
	"github.com/suPer8Hu/convo-platform/internal/store/redisstore"
	"github.com/suPer8Hu/convo-platform/internal/summary"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// declareQueues mirrors the publisher topology: main queue dead-letters to
// the DLQ, the retry queue TTLs back to main.
func declareQueues(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue+".dlq", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq: %w", err)
	}
	if _, err := ch.QueueDeclare(queue+".retry", true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare retry: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue + ".dlq",
	}); err != nil {
		return fmt.Errorf("declare main: %w", err)
	}
	return nil
}

func main() {
	cfg := config.Load()
	logger := logging.New("worker", cfg.LogLevel)

	gdb := db.Connect(cfg.DBDSN)

	repo := conversation.NewRepo(gdb)
	convSvc := conversation.NewService(repo, logger)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer rds.Close()

	summarizer, err := ai.SummarizerFromConfig(cfg)
	if err != nil {
		log.Fatalf("unsupported AI_PROVIDER=%q: %v", cfg.AIProvider, err)
	}
	sumSvc := summary.NewService(repo, rds, summarizer, logger)
	recorder := activity.NewRecorder(gdb, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := declareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).
		Msg("worker started")

	go runDailyMaintenance(ctx, convSvc, sumSvc, cfg.RetentionDays, logger)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.ConversationID == "" {
					logger.Error().Err(err).Int("worker", workerID).Msg("bad message")
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				generated := sumSvc.UpdateConversationSummary(ctx, m.ConversationID)
				logger.Info().Int("worker", workerID).
					Str("conversation_id", m.ConversationID).
					Bool("generated", generated).
					Dur("cost", time.Since(start)).
					Msg("summary job done")

				recorder.Record(ctx, activity.Entry{
					Action:       activity.ActionSummaryGenerate,
					ResourceType: "conversation",
					ResourceID:   m.ConversationID,
					Failed:       !generated,
				})

				// generation failures are absorbed inside the engine and
				// retried by the daily backfill, so always ack
				if err := d.Ack(false); err != nil {
					logger.Error().Err(err).Int("worker", workerID).Msg("ack failed")
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn().Msg("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// runDailyMaintenance deletes conversations past retention and backfills
// summaries for conversations that never got one, once a day.
func runDailyMaintenance(ctx context.Context, convSvc *conversation.Service, sumSvc *summary.Service, retentionDays int, logger zerolog.Logger) {
	run := func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
		if n, err := convSvc.DeleteConversationsOlderThan(ctx, cutoff, ""); err != nil {
			logger.Error().Err(err).Int64("deleted", n).Msg("retention cleanup failed")
		}
		if _, err := sumSvc.BackfillMissingSummaries(ctx, summary.DefaultBackfillLimit); err != nil {
			logger.Error().Err(err).Msg("summary backfill failed")
		}
	}

	run()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
