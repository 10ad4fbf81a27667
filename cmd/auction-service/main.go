package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voltbid-auction-service/internal/adapters/broadcaster"
	"voltbid-auction-service/internal/adapters/db"
	"voltbid-auction-service/internal/adapters/notifier"
	"voltbid-auction-service/internal/adapters/queue"
	"voltbid-auction-service/internal/adapters/redis"
	"voltbid-auction-service/internal/adapters/timer"
	"voltbid-auction-service/internal/adapters/ws"
	"voltbid-auction-service/internal/app"
	"voltbid-auction-service/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting VoltBid Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories and stores
	auctionRepo := db.NewAuctionRepository(dbConn)
	memberRepo := db.NewMemberRepository(dbConn)
	productStore := db.NewProductStore(dbConn)
	orderStore := db.NewOrderStore(dbConn)
	ledger := db.NewLedgerGateway(dbConn)
	deadLetters := db.NewDeadLetterStore(dbConn)

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create Redis broadcaster
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	notifications := notifier.NewNotifier(notifier.RedisNotifierParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	// Create Kafka close-request publisher
	closePub := queue.NewClosePublisher(queue.ClosePublisherParams{
		Config: cfg,
		Logger: log.Logger,
	})
	defer closePub.Close()

	// Create countdown scheduler
	countdown := timer.NewScheduler(timer.SchedulerParams{
		AuctionRepo:      auctionRepo,
		ClosePub:         closePub,
		Broadcaster:      redisBroadcaster,
		Logger:           log.Logger,
		BroadcastWindow:  cfg.Auction.TimeBroadcastWindow,
		BroadcastModulus: cfg.Auction.TimeBroadcastModulus,
	})

	// Create business services
	refunds := app.NewRefundWorkflow(app.RefundWorkflowParams{
		TxManager:   dbConn,
		OrderStore:  orderStore,
		Ledger:      ledger,
		DeadLetters: deadLetters,
		Notifier:    notifications,
		MaxAttempts: cfg.Auction.RefundAttempts,
		Logger:      log.Logger,
	})

	settlement := app.NewSettlementEngine(app.SettlementEngineParams{
		TxManager:    dbConn,
		AuctionRepo:  auctionRepo,
		MemberRepo:   memberRepo,
		ProductStore: productStore,
		OrderStore:   orderStore,
		Refunds:      refunds,
		Countdown:    countdown,
		Notifier:     notifications,
		Broadcaster:  redisBroadcaster,
		Logger:       log.Logger,
	})

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		TxManager:    dbConn,
		AuctionRepo:  auctionRepo,
		ProductStore: productStore,
		Countdown:    countdown,
		DraftGrace:   time.Duration(cfg.Auction.DraftGraceDays) * 24 * time.Hour,
		Logger:       log.Logger,
	})

	joinService := app.NewJoinService(app.JoinServiceParams{
		TxManager:   dbConn,
		AuctionRepo: auctionRepo,
		MemberRepo:  memberRepo,
		OrderStore:  orderStore,
		Ledger:      ledger,
		Countdown:   countdown,
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})

	bidService := app.NewBidService(app.BidServiceParams{
		TxManager:    dbConn,
		AuctionRepo:  auctionRepo,
		MemberRepo:   memberRepo,
		ProductStore: productStore,
		ClosePub:     closePub,
		Broadcaster:  redisBroadcaster,
		Logger:       log.Logger,
	})

	log.Info().Msg("Business services initialized")

	// Start settlement worker and reconciliation sweep
	worker := queue.NewSettlementWorker(queue.SettlementWorkerParams{
		Config:     cfg,
		Settlement: settlement,
		Logger:     log.Logger,
	})
	worker.Start(ctx)

	reconciler := queue.NewReconciler(queue.ReconcilerParams{
		AuctionRepo: auctionRepo,
		ClosePub:    closePub,
		Interval:    time.Duration(cfg.Auction.ReconcileSeconds) * time.Second,
		Logger:      log.Logger,
	})
	reconciler.Start()

	// Rebuild in-memory countdowns for auctions that were live before
	// this process started
	if err := countdown.Rehydrate(ctx); err != nil {
		log.Error().Err(err).Msg("Countdown rehydration failed")
	}

	// Periodically cancel drafts that outlived the verification grace
	go runDraftSweep(ctx, auctionService, cfg)

	log.Info().Msg("Background workers started")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		JoinService:    joinService,
		BidService:     bidService,
		Broadcaster:    redisBroadcaster,
		Logger:         log.Logger,
	})

	// Start WebSocket server
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting WebSocket server")
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	reconciler.Stop()
	worker.Stop()
	countdown.Stop()
	log.Info().Msg("Background workers stopped")

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func runDraftSweep(ctx context.Context, svc *app.AuctionService, cfg *config.Config) {
	interval := time.Duration(cfg.Auction.DraftSweepSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cancelled, err := svc.CancelExpiredDrafts(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Draft sweep failed")
				continue
			}
			if cancelled > 0 {
				log.Info().Int("cancelled", cancelled).Msg("Expired drafts cancelled")
			}
		}
	}
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global logger
	zerolog.DefaultContextLogger = &log.Logger
}
