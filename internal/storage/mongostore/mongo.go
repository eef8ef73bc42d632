package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-proxy/internal/storage"
)

const (
	historyCollection = "history"
	memoryCollection  = "memory"
	connectTimeout    = 5 * time.Second
)

// Store persists turns in the "history" collection (one document per turn)
// and memory in the "memory" collection (one document per user_id).
type Store struct {
	client  *mongo.Client
	history *mongo.Collection
	memory  *mongo.Collection
}

type historyDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	UserID    string             `bson:"user_id"`
	Role      string             `bson:"role"`
	Text      string             `bson:"text"`
	CreatedAt time.Time          `bson:"created_at"`
}

type memoryDoc struct {
	UserID string `bson:"user_id"`
	Data   bson.D `bson:"data"`
}

// Open connects, pings and ensures indexes. Callers treat any error as a
// signal to run without persistence.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:  client,
		history: db.Collection(historyCollection),
		memory:  db.Collection(memoryCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo history index: %w", err)
	}
	_, err = s.memory.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo memory index: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, userID string, role storage.Role, text string) error {
	doc := historyDoc{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Role:      string(role),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.history.InsertOne(ctx, doc); err != nil {
		return storage.Unavailable("mongo insert turn", err)
	}
	return nil
}

// ReadAll returns turns ordered by _id; ObjectIDs generated by one process
// are monotonic, which matches append order.
func (s *Store) ReadAll(ctx context.Context, userID string) ([]storage.Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.history.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, storage.Unavailable("mongo find turns", err)
	}
	defer cur.Close(ctx)

	turns := []storage.Turn{}
	for cur.Next(ctx) {
		var doc historyDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, storage.Unavailable("mongo decode turn", err)
		}
		turns = append(turns, storage.Turn{UserID: doc.UserID, Role: storage.Role(doc.Role), Text: doc.Text})
	}
	if err := cur.Err(); err != nil {
		return nil, storage.Unavailable("mongo cursor", err)
	}
	return turns, nil
}

func (s *Store) GetMemory(ctx context.Context, userID string) (storage.Memory, error) {
	var doc memoryDoc
	err := s.memory.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.Memory{}, nil
	}
	if err != nil {
		return nil, storage.Unavailable("mongo find memory", err)
	}
	return fromBSON(doc.Data), nil
}

func (s *Store) PutMemory(ctx context.Context, userID string, mem storage.Memory) error {
	_, err := s.memory.UpdateOne(ctx,
		bson.D{{Key: "user_id", Value: userID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "data", Value: toBSON(mem)}}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return storage.Unavailable("mongo upsert memory", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBSON(mem storage.Memory) bson.D {
	d := make(bson.D, 0, len(mem))
	for _, f := range mem {
		d = append(d, bson.E{Key: f.Key, Value: f.Value})
	}
	return d
}

func fromBSON(d bson.D) storage.Memory {
	mem := make(storage.Memory, 0, len(d))
	for _, e := range d {
		v, ok := e.Value.(string)
		if !ok {
			v = fmt.Sprint(e.Value)
		}
		mem.Set(e.Key, v)
	}
	return mem
}

var _ storage.Store = (*Store)(nil)
