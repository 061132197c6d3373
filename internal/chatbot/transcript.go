package chatbot

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

type Message struct {
	SessionID string    `bson:"session_id" json:"session_id"`
	Role      string    `bson:"role" json:"role"`
	Text      string    `bson:"text" json:"text"`
	Intent    Intent    `bson:"intent,omitempty" json:"intent,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type TranscriptStore interface {
	Append(ctx context.Context, msgs ...Message) error
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

type MongoTranscripts struct {
	collection *mongo.Collection
}

func NewMongoTranscripts(db *mongo.Database) *MongoTranscripts {
	return &MongoTranscripts{collection: db.Collection("chat_messages")}
}

func (m *MongoTranscripts) Append(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		docs = append(docs, msg)
	}
	// ordered so the user turn is stored before the bot turn
	if _, err := m.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to store chat messages: %w", err)
	}
	return nil
}

// History returns the latest limit messages of a session, oldest first.
func (m *MongoTranscripts) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := make([]Message, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CreateIndexes adds the session lookup index and expires transcripts after 30 days.
func (m *MongoTranscripts) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60),
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}
	return nil
}
