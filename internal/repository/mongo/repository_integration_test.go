package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"

	"czstreams/internal/domain"
)

// testMongoURI returns the MongoDB connection URI for integration tests.
// Set MONGO_TEST_URI to override localhost.
func testMongoURI() string {
	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

func setupTestRepo(t *testing.T) *LookupRepository {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uri := testMongoURI()
	client, err := Connect(ctx, uri, options.Client().SetConnectTimeout(2*time.Second).SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB ping failed at %s: %v", uri, err)
	}

	dbName := fmt.Sprintf("czstreams_test_%d", time.Now().UnixNano())
	repo := NewLookupRepository(client, dbName, "")
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		t.Fatalf("EnsureIndexes: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return repo
}

func TestListRecentNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		record := domain.LookupRecord{
			ID:        fmt.Sprintf("id-%d", i),
			Type:      domain.MediaTypeMovie,
			MetaID:    "tt0167116",
			Title:     "Pelíšky",
			Streams:   i,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Append(ctx, record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != 2 || records[0].ID != "id-2" || records[1].ID != "id-1" {
		t.Fatalf("unexpected order %+v", records)
	}
	if !records[0].CreatedAt.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("unexpected createdAt %v", records[0].CreatedAt)
	}
}
