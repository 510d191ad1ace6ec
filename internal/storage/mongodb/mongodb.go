package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RunJournal stores one document per batch run, keyed by run_id.
type RunJournal struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewRunJournal(ctx context.Context, uri, database, collection string, timeout time.Duration) (*RunJournal, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctxPing, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	ctxIndex, cancelIndex := context.WithTimeout(ctx, timeout)
	defer cancelIndex()

	if _, err := coll.Indexes().CreateOne(ctxIndex, indexModel); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	journal := newRunJournalWithCollection(coll)
	journal.client = client
	return journal, nil
}

func newRunJournalWithCollection(coll *mongo.Collection) *RunJournal {
	return &RunJournal{collection: coll}
}

// SaveRun upserts the report so a retried save never duplicates a run.
func (j *RunJournal) SaveRun(ctx context.Context, report *models.RunReport) error {
	filter := bson.M{"run_id": report.RunID}
	opts := options.Replace().SetUpsert(true)

	if _, err := j.collection.ReplaceOne(ctx, filter, report, opts); err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}
	return nil
}

func (j *RunJournal) GetRunByID(ctx context.Context, runID string) (*models.RunReport, error) {
	var report models.RunReport

	err := j.collection.FindOne(ctx, bson.M{"run_id": runID}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	return &report, nil
}

func (j *RunJournal) Close() error {
	if j.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return j.client.Disconnect(ctx)
}
