package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"czstreams/internal/domain"
)

const (
	DefaultCollection = "lookups"
	maxListLimit      = 500
)

// LookupRepository stores served stream lookups.
type LookupRepository struct {
	collection *mongo.Collection
}

type lookupDoc struct {
	ID        string   `bson:"_id"`
	Type      string   `bson:"type"`
	MetaID    string   `bson:"metaId"`
	Title     string   `bson:"title"`
	Terms     []string `bson:"terms,omitempty"`
	Resolvers []string `bson:"resolvers,omitempty"`
	Streams   int      `bson:"streams"`
	ElapsedMS int64    `bson:"elapsedMs"`
	CreatedAt int64    `bson:"createdAt"`
}

func NewLookupRepository(client *mongo.Client, dbName, collectionName string) *LookupRepository {
	if collectionName == "" {
		collectionName = DefaultCollection
	}
	return &LookupRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *LookupRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "metaId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *LookupRepository) Append(ctx context.Context, record domain.LookupRecord) error {
	_, err := r.collection.InsertOne(ctx, toDoc(record))
	return err
}

// ListRecent returns the newest records first.
func (r *LookupRepository) ListRecent(ctx context.Context, limit int) ([]domain.LookupRecord, error) {
	limit = clampLimit(limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []lookupDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func toDoc(r domain.LookupRecord) lookupDoc {
	return lookupDoc{
		ID:        r.ID,
		Type:      string(r.Type),
		MetaID:    r.MetaID,
		Title:     r.Title,
		Terms:     r.Terms,
		Resolvers: r.Resolvers,
		Streams:   r.Streams,
		ElapsedMS: r.ElapsedMS,
		CreatedAt: r.CreatedAt.UTC().UnixMilli(),
	}
}

func fromDoc(doc lookupDoc) domain.LookupRecord {
	return domain.LookupRecord{
		ID:        doc.ID,
		Type:      domain.MediaType(doc.Type),
		MetaID:    doc.MetaID,
		Title:     doc.Title,
		Terms:     doc.Terms,
		Resolvers: doc.Resolvers,
		Streams:   doc.Streams,
		ElapsedMS: doc.ElapsedMS,
		CreatedAt: time.UnixMilli(doc.CreatedAt).UTC(),
	}
}

func fromDocs(docs []lookupDoc) []domain.LookupRecord {
	out := make([]domain.LookupRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out
}
