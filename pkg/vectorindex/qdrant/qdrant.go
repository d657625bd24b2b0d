package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"

	"github.com/qdrant/go-client/qdrant"
)

// Index implements vectorindex.Index on a Qdrant collection with cosine
// distance.
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewIndexParams contains configuration for creating a qdrant Index.
type NewIndexParams struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// NewIndex connects to Qdrant and ensures the collection exists with
// the configured dimensionality.
func NewIndex(ctx context.Context, params NewIndexParams) (*Index, error) {
	if params.Host == "" {
		params.Host = "localhost"
	}
	if params.Port == 0 {
		params.Port = 6334
	}
	if params.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", params.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: params.Host,
		Port: params.Port,
	})
	if err != nil {
		return nil, err
	}

	idx := &Index{
		client:     client,
		collection: params.Collection,
		dimension:  params.Dimension,
	}

	exists, err := client.CollectionExists(ctx, params.Collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: params.Collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(params.Dimension),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		}); err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
	}

	return idx, nil
}

func (i *Index) Close() error {
	return i.client.Close()
}

func (i *Index) Dimension() int {
	return i.dimension
}

func (i *Index) Insert(ctx context.Context, rec common.VectorRecord) error {
	if len(rec.Embedding) != i.dimension {
		return common.ErrDimensionMismatch
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	payload := map[string]any{
		"text":       rec.Text,
		"ref_id":     rec.RefID,
		"created_at": createdAt.Format(time.RFC3339),
	}
	for k, v := range rec.Metadata {
		payload[k] = v
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(rec.ID),
				Vectors: qdrant.NewVectors(rec.Embedding...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point %s: %w", rec.ID, err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	limit := uint64(topK)
	var qFilter *qdrant.Filter
	if len(filter.Sources) > 0 {
		qFilter = &qdrant.Filter{
			Should: make([]*qdrant.Condition, 0, len(filter.Sources)),
		}
		for _, src := range filter.Sources {
			qFilter.Should = append(qFilter.Should, qdrant.NewMatch("ref_id", src))
		}
	}

	resp, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Limit:          &limit,
		Filter:         qFilter,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", i.collection, err)
	}

	out := make([]vectorindex.Result, 0, len(resp))
	for _, r := range resp {
		rec := common.VectorRecord{
			Metadata: make(map[string]string),
		}
		if r.Id != nil {
			if u, ok := r.Id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
				rec.ID = u.Uuid
			}
		}
		for key, v := range r.Payload {
			sv, ok := v.Kind.(*qdrant.Value_StringValue)
			if !ok {
				continue
			}
			switch key {
			case "text":
				rec.Text = sv.StringValue
			case "ref_id":
				rec.RefID = sv.StringValue
			case "created_at":
				if t, err := time.Parse(time.RFC3339, sv.StringValue); err == nil {
					rec.CreatedAt = t
				}
			default:
				rec.Metadata[key] = sv.StringValue
			}
		}

		// Time-range filtering happens client-side; qdrant only
		// pre-filters on sources.
		if !filter.Matches(rec) {
			continue
		}

		out = append(out, vectorindex.Result{
			ID:     rec.ID,
			Score:  float64(r.Score),
			Record: rec,
		})
	}
	return out, nil
}

func (i *Index) Delete(ctx context.Context, ids []string) error {
	points := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		points = append(points, qdrant.NewIDUUID(id))
	}
	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: points},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}
