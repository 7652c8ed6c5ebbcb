// Package mongo stores the gateway audit trail in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pos-backoffice/wirepos/internal/domain/audit"
)

const (
	// ExchangeCollectionName is the name of the gateway audit collection in MongoDB
	ExchangeCollectionName = "gateway_exchanges"
)

// ExchangeRepository implements the audit.Repository interface for MongoDB
type ExchangeRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewExchangeRepository creates a new MongoDB exchange repository
func NewExchangeRepository(logger *slog.Logger, db *mongo.Database) *ExchangeRepository {
	return &ExchangeRepository{
		db:     db,
		logger: logger,
	}
}

var _ audit.Repository = (*ExchangeRepository)(nil)

// EnsureIndexes creates the lookup index used by ListByTransactionID
func (r *ExchangeRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(ExchangeCollectionName)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "recorded_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create exchange index: %w", err)
	}
	return nil
}

// Record appends one exchange to the audit trail
func (r *ExchangeRepository) Record(ctx context.Context, exchange *audit.Exchange) error {
	collection := r.db.Collection(ExchangeCollectionName)

	if _, err := collection.InsertOne(ctx, exchange); err != nil {
		r.logger.Error("Failed to record gateway exchange",
			"transaction_id", exchange.TransactionID,
			"operation", string(exchange.Operation),
			"error", err)
		return fmt.Errorf("failed to record gateway exchange: %w", err)
	}

	return nil
}

// ListByTransactionID returns the exchanges of one transaction, oldest first
func (r *ExchangeRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]*audit.Exchange, error) {
	collection := r.db.Collection(ExchangeCollectionName)

	filter := bson.M{"transaction_id": transactionID}
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get gateway exchanges",
			"transaction_id", transactionID,
			"error", err)
		return nil, fmt.Errorf("failed to get gateway exchanges: %w", err)
	}
	defer cursor.Close(ctx)

	exchanges := make([]*audit.Exchange, 0)
	if err := cursor.All(ctx, &exchanges); err != nil {
		r.logger.Error("Failed to decode gateway exchanges",
			"transaction_id", transactionID,
			"error", err)
		return nil, fmt.Errorf("failed to decode gateway exchanges: %w", err)
	}

	return exchanges, nil
}
