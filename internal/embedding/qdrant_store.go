package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const DefaultQdrantCollection = "job_posting_embeddings"

// pointNamespace derives stable point ids from job posting ids.
var pointNamespace = uuid.MustParse("6f1c1a52-4f0e-4a53-9a8e-2c7d0b1f3e11")

const (
	payloadJobPostingID = "job_posting_id"
	payloadModelVersion = "model_version"
	payloadUpdatedAt    = "updated_at"
)

// qdrantPoints is the subset of *qdrant.Client used by the store.
type qdrantPoints interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
}

// QdrantStore keeps vectors in a Qdrant collection, one point per posting.
type QdrantStore struct {
	client     qdrantPoints
	collection string
}

// NewQdrantClient connects to Qdrant over gRPC.
func NewQdrantClient(host string, port int, apiKey string) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return client, nil
}

func NewQdrantStore(client qdrantPoints, collection string) *QdrantStore {
	if collection == "" {
		collection = DefaultQdrantCollection
	}
	return &QdrantStore{client: client, collection: collection}
}

// EnsureCollection creates the collection with cosine distance when missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimensions uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}

	if dimensions == 0 {
		return errors.New("vector dimensions are required to create the qdrant collection")
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection: %w", err)
	}
	return nil
}

func pointID(jobPostingID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(jobPostingID)).String()
}

func (s *QdrantStore) GetEmbeddings(ctx context.Context, ids []string) (map[string]Record, error) {
	result := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(pointID(id)))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get qdrant points: %w", err)
	}

	for _, point := range points {
		payload := point.GetPayload()
		id := payload[payloadJobPostingID].GetStringValue()
		if id == "" {
			continue
		}

		rec := Record{
			JobPostingID: id,
			Vector:       point.GetVectors().GetVector().GetData(),
			ModelVersion: payload[payloadModelVersion].GetStringValue(),
		}
		if ts := payload[payloadUpdatedAt].GetStringValue(); ts != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				rec.UpdatedAt = parsed
			}
		}
		result[id] = rec
	}

	return result, nil
}

func (s *QdrantStore) PutEmbedding(ctx context.Context, rec Record) error {
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(rec.JobPostingID)),
		Vectors: qdrant.NewVectorsDense(rec.Vector),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadJobPostingID: rec.JobPostingID,
			payloadModelVersion: rec.ModelVersion,
			payloadUpdatedAt:    rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert qdrant point: %w", err)
	}
	return nil
}
