package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource loads transactions from a MongoDB collection.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoSource connects to MongoDB and verifies the connection.
func NewMongoSource(ctx context.Context, cfg domain.SourceConfig) (*MongoSource, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("%w: mongo uri is required", ErrInvalidInput)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoSource{
		client:     client,
		collection: client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
	}, nil
}

// LoadTransactions returns up to limit documents in natural order.
func (s *MongoSource) LoadTransactions(ctx context.Context, limit int) ([]domain.RawTransaction, error) {
	if limit <= 0 {
		limit = domain.DefaultSourceLimit
	}

	cur, err := s.collection.Find(ctx, bson.D{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer cur.Close(ctx)

	var txs []domain.RawTransaction
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		txs = append(txs, rawFromDocument(doc))
	}

	return txs, cur.Err()
}

// Close disconnects from MongoDB.
func (s *MongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// rawFromDocument maps a stored document onto a raw transaction.
// Identifier fields may be stored as numbers; BSON specific types are
// converted to the plain Go values the normalizer understands.
func rawFromDocument(doc bson.M) domain.RawTransaction {
	return domain.RawTransaction{
		TransactionID:            idString(doc["transactionId"], doc["_id"]),
		CustomerID:               idString(doc["customerId"], nil),
		AccountNumber:            idString(doc["accountNumber"], nil),
		TransactionDateTime:      plain(doc["transactionDateTime"]),
		TransactionAmount:        plain(doc["transactionAmount"]),
		MerchantName:             idString(doc["merchantName"], nil),
		MerchantCountryCode:      plain(doc["merchantCountryCode"]),
		MerchantCategoryCode:     idString(doc["merchantCategoryCode"], nil),
		AcqCountry:               plain(doc["acqCountry"]),
		CardCVV:                  plain(doc["cardCVV"]),
		EnteredCVV:               plain(doc["enteredCVV"]),
		ExpirationDateKeyInMatch: plain(doc["expirationDateKeyInMatch"]),
		CardPresent:              plain(doc["cardPresent"]),
		IsFraud:                  plain(doc["isFraud"]),
	}
}

func plain(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

func idString(v, fallback any) string {
	if v == nil {
		v = fallback
	}
	switch t := plain(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
