package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"surveil-screener/models"
)

const (
	runsCollection   = "runs"
	scoresCollection = "scores"
)

type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	if database == "" {
		return nil, fmt.Errorf("mongo database name is empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	return &MongoClient{client: client, db: client.Database(database)}, nil
}

func (m *MongoClient) Close() error {
	if m.client != nil {
		return m.client.Disconnect(context.Background())
	}
	return nil
}

func (m *MongoClient) SaveRun(ctx context.Context, run models.RunRecord) error {
	run.CreatedAt = run.CreatedAt.UTC()
	_, err := m.db.Collection(runsCollection).ReplaceOne(ctx,
		bson.M{"_id": run.ID},
		run,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error storing run %s: %w", run.ID, err)
	}
	return nil
}

func (m *MongoClient) SaveScores(ctx context.Context, runID, pool string, rows []models.ScoreRow) error {
	coll := m.db.Collection(scoresCollection)
	if _, err := coll.DeleteMany(ctx, bson.M{"runId": runID, "pool": pool}); err != nil {
		return fmt.Errorf("error clearing scores: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(rows))
	for _, s := range storedScores(runID, pool, rows) {
		docs = append(docs, s)
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error storing scores: %w", err)
	}
	return nil
}

func (m *MongoClient) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.db.Collection(runsCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []models.RunRecord
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("error decoding runs: %w", err)
	}
	return runs, nil
}

func (m *MongoClient) GetRun(ctx context.Context, id string) (models.RunRecord, bool, error) {
	var run models.RunRecord
	err := m.db.Collection(runsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return models.RunRecord{}, false, nil
	}
	if err != nil {
		return models.RunRecord{}, false, fmt.Errorf("failed to retrieve run: %w", err)
	}
	return run, true, nil
}

func (m *MongoClient) GetScores(ctx context.Context, runID string) ([]models.StoredScore, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "pool", Value: 1},
		{Key: "error", Value: -1},
		{Key: "id", Value: 1},
	})
	cursor, err := m.db.Collection(scoresCollection).Find(ctx, bson.M{"runId": runID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying scores: %w", err)
	}
	defer cursor.Close(ctx)

	var scores []models.StoredScore
	if err := cursor.All(ctx, &scores); err != nil {
		return nil, fmt.Errorf("error decoding scores: %w", err)
	}
	return scores, nil
}
