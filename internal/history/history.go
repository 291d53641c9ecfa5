package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"czstreams/internal/domain"
)

// Store persists lookup records. The Mongo repository implements it.
type Store interface {
	Append(ctx context.Context, record domain.LookupRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.LookupRecord, error)
}

// Recorder appends lookup records without failing the request that produced
// them. A nil store turns recording off.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Lookup summarizes one served stream request. Stream URLs are never kept.
type Lookup struct {
	Meta      domain.Metadata
	MetaID    string
	Terms     []string
	Resolvers []string
	Streams   int
	Elapsed   time.Duration
}

func (r *Recorder) Record(ctx context.Context, lookup Lookup) {
	if !r.Enabled() {
		return
	}
	record := domain.LookupRecord{
		ID:        uuid.NewString(),
		Type:      lookup.Meta.Type,
		MetaID:    lookup.MetaID,
		Title:     lookup.Meta.Name,
		Terms:     lookup.Terms,
		Resolvers: lookup.Resolvers,
		Streams:   lookup.Streams,
		ElapsedMS: lookup.Elapsed.Milliseconds(),
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.Append(ctx, record); err != nil {
		r.logger.Warn("lookup history append failed",
			slog.String("metaId", lookup.MetaID),
			slog.String("error", err.Error()),
		)
	}
}

// Recent lists the newest records. Disabled history yields an empty list.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]domain.LookupRecord, error) {
	if !r.Enabled() {
		return []domain.LookupRecord{}, nil
	}
	return r.store.ListRecent(ctx, limit)
}
