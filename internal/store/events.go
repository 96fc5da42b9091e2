package store

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// EventsConfig mirrors the teacher's Kafka producer settings.
type EventsConfig struct {
	Brokers          []string
	TransfersTopic   string
	BalancesTopic    string
}

// EventPublisher emits best-effort change notifications for downstream
// consumers (an explorer UI, a read API) after a write succeeds. Publish
// failures are logged, never propagated: persistence is the system of
// record, the event stream is supplemental (spec.md §3's domain stack
// note on messaging).
type EventPublisher struct {
	transfers *kafka.Writer
	balances  *kafka.Writer
	logger    *zap.Logger
}

func NewEventPublisher(cfg EventsConfig, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		transfers: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.TransfersTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 100 * time.Millisecond,
			Async:        true,
		},
		balances: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.BalancesTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 100 * time.Millisecond,
			Async:        true,
		},
		logger: logger,
	}
}

func (p *EventPublisher) Close() error {
	errTransfers := p.transfers.Close()
	errBalances := p.balances.Close()
	if errTransfers != nil {
		return errTransfers
	}
	return errBalances
}

func (p *EventPublisher) PublishTransfer(ctx context.Context, row domain.TokenTransfer) {
	payload, err := json.Marshal(row)
	if err != nil {
		p.logger.Warn("failed to marshal transfer event", zap.Error(err))
		return
	}
	if err := p.transfers.WriteMessages(ctx, kafka.Message{Key: []byte(row.TxHash), Value: payload}); err != nil {
		p.logger.Warn("failed to publish transfer event", zap.String("tx_hash", row.TxHash), zap.Error(err))
	}
}

func (p *EventPublisher) PublishBalance(ctx context.Context, row domain.TokenBalance) {
	payload, err := json.Marshal(row)
	if err != nil {
		p.logger.Warn("failed to marshal balance event", zap.Error(err))
		return
	}
	if err := p.balances.WriteMessages(ctx, kafka.Message{Key: []byte(row.Holder), Value: payload}); err != nil {
		p.logger.Warn("failed to publish balance event", zap.String("holder", row.Holder), zap.Error(err))
	}
}

// PublishingPersistence decorates a Persistence with best-effort Kafka
// notifications after each successful write, keeping the publish step
// entirely outside the write's own success/failure path.
type PublishingPersistence struct {
	Persistence
	events *EventPublisher
}

// NewPublishingPersistence wraps next so every successful write also
// publishes a change event.
func NewPublishingPersistence(next Persistence, events *EventPublisher) *PublishingPersistence {
	return &PublishingPersistence{Persistence: next, events: events}
}

func (p *PublishingPersistence) SaveTransfer(ctx context.Context, tokenID, fetchedBy int64, record transfer.Record) error {
	if err := p.Persistence.SaveTransfer(ctx, tokenID, fetchedBy, record); err != nil {
		return err
	}
	p.events.PublishTransfer(ctx, record.ToPersisted(tokenID, fetchedBy))
	return nil
}

func (p *PublishingPersistence) UpsertBalance(ctx context.Context, row domain.TokenBalance) error {
	if err := p.Persistence.UpsertBalance(ctx, row); err != nil {
		return err
	}
	p.events.PublishBalance(ctx, row)
	return nil
}

func (p *PublishingPersistence) InsertEnumerableTokenID(ctx context.Context, row domain.TokenBalance) error {
	if err := p.Persistence.InsertEnumerableTokenID(ctx, row); err != nil {
		return err
	}
	p.events.PublishBalance(ctx, row)
	return nil
}

func (p *PublishingPersistence) DeleteEnumerableTokenID(ctx context.Context, tokenID int64, holder string, id *big.Int) error {
	return p.Persistence.DeleteEnumerableTokenID(ctx, tokenID, holder, id)
}
