package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/reclaim-app/reclaim/internal/logging"
)

// payloadItemIDKey holds the caller's id; Qdrant point ids must be UUIDs
const payloadItemIDKey = "_item_id"

// pointNamespace seeds deterministic point ids derived from item ids
var pointNamespace = uuid.MustParse("6d1f6b7e-4a0c-4f55-9a43-1c2b5e0f7d21")

// QdrantConfig configures the Qdrant-backed index
type QdrantConfig struct {
	Addr       string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantIndex keeps the index contract on top of a Qdrant collection
type QdrantIndex struct {
	cfg         QdrantConfig
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	log         *logging.Logger
}

// NewQdrantIndex connects to Qdrant and ensures the collection exists
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, log *logging.Logger) (*QdrantIndex, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant: vector dimension must be positive")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	conn, err := grpc.Dial(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s: %w", cfg.Addr, err)
	}

	idx := &QdrantIndex{
		cfg:         cfg,
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		log:         log.With("component", "qdrant_index", "collection", cfg.Collection),
	}

	if err := idx.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.cfg.Collection})
	if err == nil {
		return nil
	}

	q.log.Info("creating qdrant collection", "dimension", q.cfg.Dimension)
	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.cfg.Dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", q.cfg.Collection, err)
	}
	return nil
}

// Add upserts the embedding for id
func (q *QdrantIndex) Add(ctx context.Context, id string, embedding []float32, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	wait := true
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id: pointID(id),
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: embedding},
				},
			},
			Payload: toPayload(id, metadata),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %s: %w", id, err)
	}
	return nil
}

// Remove deletes the point for id
func (q *QdrantIndex) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	wait := true
	_, err := q.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete %s: %w", id, err)
	}
	return nil
}

// Clear drops and recreates the collection
func (q *QdrantIndex) Clear(ctx context.Context) error {
	delCtx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	_, err := q.collections.Delete(delCtx, &qdrant.DeleteCollection{CollectionName: q.cfg.Collection})
	cancel()
	if err != nil {
		return fmt.Errorf("qdrant: drop collection %s: %w", q.cfg.Collection, err)
	}
	return q.ensureCollection(ctx)
}

// Search returns the k nearest points by cosine similarity
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultK
	}
	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.cfg.Collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		id, meta := fromPayload(p.GetPayload())
		hits = append(hits, Hit{
			ID:         id,
			Similarity: float64(p.GetScore()),
			Metadata:   meta,
		})
	}
	return hits, nil
}

// Close releases the gRPC connection
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func pointID(id string) *qdrant.PointId {
	return &qdrant.PointId{
		PointIdOptions: &qdrant.PointId_Uuid{
			Uuid: uuid.NewSHA1(pointNamespace, []byte(id)).String(),
		},
	}
}

func toPayload(id string, metadata map[string]string) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	payload[payloadItemIDKey] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: id}}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) (string, map[string]string) {
	meta := make(map[string]string, len(payload))
	var id string
	for k, v := range payload {
		s, ok := v.GetKind().(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		if k == payloadItemIDKey {
			id = s.StringValue
			continue
		}
		meta[k] = s.StringValue
	}
	return id, meta
}
