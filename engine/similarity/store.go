package similarity

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Record is one fingerprint to index, keyed by the archive snapshot id.
type Record struct {
	ID         string
	Vector     []float32
	Name       string
	Components int
	Wires      int
}

// Hit is one similarity search result.
type Hit struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Name       string  `json:"name"`
	Components int     `json:"components"`
	Wires      int     `json:"wires"`
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("similarity: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error { return v.conn.Close() }

// EnsureCollection creates the fingerprint collection if missing.
func (v *VectorStore) EnsureCollection(ctx context.Context) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("similarity: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(FingerprintDims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("similarity: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection drops the fingerprint collection. Intended for test
// teardown.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("similarity: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert indexes fingerprint records.
func (v *VectorStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"name":       {Kind: &pb.Value_StringValue{StringValue: r.Name}},
				"components": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Components)}},
				"wires":      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Wires)}},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("similarity: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Delete removes a fingerprint by snapshot id.
func (v *VectorStore) Delete(ctx context.Context, id string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("similarity: delete %s: %w", id, err)
	}
	return nil
}

// Search performs k-NN search over the fingerprint space.
func (v *VectorStore) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("similarity: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := Hit{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
		}
		for k, val := range r.GetPayload() {
			switch k {
			case "name":
				h.Name = val.GetStringValue()
			case "components":
				h.Components = int(val.GetIntegerValue())
			case "wires":
				h.Wires = int(val.GetIntegerValue())
			}
		}
		hits[i] = h
	}
	return hits, nil
}
