package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"stocktake/backend/internal/vector"
	"stocktake/backend/internal/vectorstore"
)

// Store implements vectorstore.Store on a Weaviate class. Weaviate requires
// UUID object ids, so the logical chunk id ("<resourceId>-<index>") maps to a
// deterministic UUIDv5 and is also stored as the chunkId property for lookups
// and deletes.
type Store struct {
	client *weaviate.Client
	schema *vector.WeaviateClientAdapter
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{
		client: client,
		schema: vector.NewWeaviateClientAdapter(client),
	}
}

func objectUUID(id string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, s.schema)
}

func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(entries))
	for _, e := range entries {
		props := map[string]interface{}{"chunkId": e.ID}
		for k, v := range e.Metadata {
			props[k] = v
		}
		objects = append(objects, &models.Object{
			Class:      vector.ClassName,
			ID:         objectUUID(e.ID),
			Properties: props,
			Vector:     e.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, queryVector []float32, topK int, includeMetadata bool) ([]vectorstore.Match, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
	if includeMetadata {
		fields = append(fields,
			graphql.Field{Name: "content"},
			graphql.Field{Name: "resourceId"},
			graphql.Field{Name: "chunkIndex"},
		)
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var matches []vectorstore.Match
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return matches, nil
	}
	objects, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return matches, nil
	}

	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}

		match := vectorstore.Match{}
		if id, ok := props["chunkId"].(string); ok {
			match.ID = id
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch c := additional["certainty"].(type) {
			case float64:
				match.Score = float32(c)
			case string:
				if f, err := strconv.ParseFloat(c, 64); err == nil {
					match.Score = float32(f)
				}
			}
		}
		if includeMetadata {
			match.Metadata = make(map[string]interface{})
			if content, ok := props["content"].(string); ok {
				match.Metadata["content"] = content
			}
			if resourceID, ok := props["resourceId"].(string); ok {
				match.Metadata["resourceId"] = resourceID
			}
			if idx, ok := props["chunkIndex"].(float64); ok {
				match.Metadata["chunkIndex"] = int(idx)
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"chunkId"}).
			WithOperator(filters.ContainsAny).
			WithValueString(ids...)).
		Do(ctx)
	return err
}

// DescribeDimension samples one stored object and returns its vector length,
// or 0 when the class is empty.
func (s *Store) DescribeDimension(ctx context.Context) (int, error) {
	fields := []graphql.Field{
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithLimit(1).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	objects, ok := data[vector.ClassName].([]interface{})
	if !ok || len(objects) == 0 {
		return 0, nil
	}
	props, ok := objects[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	additional, ok := props["_additional"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	vec, ok := additional["vector"].([]interface{})
	if !ok {
		return 0, nil
	}
	return len(vec), nil
}

func (s *Store) Reset(ctx context.Context) error {
	return vector.ResetSchema(ctx, s.schema)
}

// Count returns the number of stored chunks via a metadata aggregate.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	objects, ok := data[vector.ClassName].([]interface{})
	if !ok || len(objects) == 0 {
		return 0, nil
	}
	props, ok := objects[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := props["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, nil
	}
	return int(count), nil
}
