package main

import (
	"log"

	"github.com/suPer8Hu/convo-platform/internal/config"
	"github.com/suPer8Hu/convo-platform/internal/db"
	"github.com/suPer8Hu/convo-platform/internal/httpapi"
	"github.com/suPer8Hu/convo-platform/internal/logging"
	"github.com/suPer8Hu/convo-platform/internal/store/rabbitmq"
	"github.com/suPer8Hu/convo-platform/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	logger := logging.New("server", cfg.LogLevel)

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer rds.Close()

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		// summary regeneration degrades to inline execution
		logger.Warn().Err(err).Msg("rabbitmq unavailable, running without queue")
		rabbit = nil
	} else {
		defer rabbit.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, rabbit, logger)

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server starting")
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
