package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"voltbid-auction-service/internal/config"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/inbound"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// SettlementWorker consumes close requests and drives the settlement
// engine. The engine's already-ended guard makes duplicate and replayed
// messages harmless, so at-least-once delivery is enough.
type SettlementWorker struct {
	reader     *kafka.Reader
	settlement inbound.SettlementService
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

type SettlementWorkerParams struct {
	Config     *config.Config
	Settlement inbound.SettlementService
	Logger     zerolog.Logger
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(params SettlementWorkerParams) *SettlementWorker {
	return &SettlementWorker{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  params.Config.Kafka.Brokers,
			Topic:    params.Config.Kafka.CloseTopic,
			GroupID:  params.Config.Kafka.GroupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		settlement: params.Settlement,
		logger:     params.Logger.With().Str("component", "settlement_worker").Logger(),
	}
}

// Start launches the consume loop
func (w *SettlementWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info().Msg("Settlement worker started")
}

// Stop closes the reader and waits for the loop to drain
func (w *SettlementWorker) Stop() {
	if err := w.reader.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Error closing settlement reader")
	}
	w.wg.Wait()
	w.logger.Info().Msg("Settlement worker stopped")
}

func (w *SettlementWorker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		m, err := w.reader.ReadMessage(ctx)
		if err != nil {
			// Context cancel or closed reader ends the loop
			return
		}

		var req CloseRequest
		if err := json.Unmarshal(m.Value, &req); err != nil {
			w.logger.Error().Err(err).Str("key", string(m.Key)).Msg("Malformed close request, skipping")
			continue
		}

		if err := req.Validate(); err != nil {
			w.logger.Error().Err(err).Str("key", string(m.Key)).Msg("Invalid close request, skipping")
			continue
		}

		w.handle(ctx, req)
	}
}

func (w *SettlementWorker) handle(ctx context.Context, req CloseRequest) {
	result, err := w.settlement.Close(ctx, req.AuctionID, req.Reason)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) || errors.Is(err, shared.ErrInvalidTransition) {
			w.logger.Warn().Err(err).
				Str("auction_id", req.AuctionID.String()).
				Msg("Close request not applicable, dropping")
			return
		}

		// Transient store failure: the reconciliation sweep will
		// re-publish, so log and move on rather than blocking the
		// partition.
		w.logger.Error().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("reason", string(req.Reason)).
			Msg("Failed to settle auction")
		return
	}

	if result.AlreadyEnded {
		w.logger.Debug().Str("auction_id", req.AuctionID.String()).Msg("Auction already settled")
		return
	}

	w.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("reason", string(req.Reason)).
		Msg("Auction settled from close request")
}
