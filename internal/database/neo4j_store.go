package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Properties the store reserves on every :Document node
const (
	propKey        = "key"
	propCollection = "collection"
	propID         = "id"
	propJSON       = "_json"
	propCreated    = "_createdAt"
)

// Neo4jStore keeps each document as a :Document node. Scalar fields and lists of
// scalars become node properties; nested objects are stored as JSON strings and their
// names are listed in the _json property.
type Neo4jStore struct {
	client *Neo4jClient
}

// NewNeo4jStore creates a document store backed by client
func NewNeo4jStore(client *Neo4jClient) *Neo4jStore {
	return &Neo4jStore{client: client}
}

func documentKey(collection, id string) string {
	return collection + "/" + id
}

// Add stores fields under a generated id
func (s *Neo4jStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Create stores fields under id
func (s *Neo4jStore) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	props, err := encodeProperties(fields)
	if err != nil {
		return err
	}
	key := documentKey(collection, id)
	props[propKey] = key
	props[propCollection] = collection
	props[propID] = id

	_, err = s.client.ExecuteWriteTransaction(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (d:Document {key: $key})
			RETURN count(d) AS existing
		`, map[string]interface{}{"key": key})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		if existing, _ := record.Get("existing"); toInt(existing) > 0 {
			return nil, ErrAlreadyExists
		}

		_, err = tx.Run(ctx, `
			CREATE (d:Document)
			SET d = $props, d._createdAt = datetime()
		`, map[string]interface{}{"props": props})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}
	return nil
}

// Get returns one document
func (s *Neo4jStore) Get(ctx context.Context, collection, id string) (Document, error) {
	results, err := s.client.ExecuteRead(ctx, `
		MATCH (d:Document {key: $key})
		RETURN properties(d) AS props
	`, map[string]interface{}{"key": documentKey(collection, id)})
	if err != nil {
		return Document{}, err
	}
	if len(results) == 0 {
		return Document{}, ErrNotFound
	}
	return decodeDocument(results[0]["props"])
}

// GetAll returns every document of a collection in creation order
func (s *Neo4jStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return s.Query(ctx, collection, Query{})
}

// Query filters by equality and optionally sorts
func (s *Neo4jStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	params := map[string]interface{}{"collection": collection}
	cypher := "MATCH (d:Document {collection: $collection})"

	for i, f := range q.Where {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		fieldParam := fmt.Sprintf("f%d", i)
		valueParam := fmt.Sprintf("v%d", i)
		if i == 0 {
			cypher += " WHERE "
		} else {
			cypher += " AND "
		}
		cypher += fmt.Sprintf("d[$%s] = $%s", fieldParam, valueParam)
		params[fieldParam] = f.Field
		params[valueParam] = value
	}

	cypher += " RETURN properties(d) AS props"
	if q.OrderBy != "" {
		params["orderBy"] = q.OrderBy
		cypher += " ORDER BY d[$orderBy]"
		if q.Descending {
			cypher += " DESC"
		}
	} else {
		cypher += " ORDER BY d._createdAt"
	}
	if q.Limit > 0 {
		params["limit"] = q.Limit
		cypher += " LIMIT $limit"
	}

	results, err := s.client.ExecuteRead(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(results))
	for _, result := range results {
		doc, err := decodeDocument(result["props"])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Update merges fields into an existing document
func (s *Neo4jStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	key := documentKey(collection, id)

	_, err := s.client.ExecuteWriteTransaction(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (d:Document {key: $key})
			RETURN properties(d) AS props
		`, map[string]interface{}{"key": key})
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrNotFound
		}
		raw, _ := records[0].Get("props")
		existing, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}

		merged := existing.Fields
		for k, v := range fields {
			merged[k] = v
		}
		props, err := encodeProperties(merged)
		if err != nil {
			return nil, err
		}
		props[propKey] = key
		props[propCollection] = collection
		props[propID] = id
		if created, ok := raw.(map[string]interface{})[propCreated]; ok {
			props[propCreated] = created
		}

		_, err = tx.Run(ctx, `
			MATCH (d:Document {key: $key})
			SET d = $props
		`, map[string]interface{}{"key": key, "props": props})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return nil
}

// Delete removes a document
func (s *Neo4jStore) Delete(ctx context.Context, collection, id string) error {
	key := documentKey(collection, id)

	_, err := s.client.ExecuteWriteTransaction(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (d:Document {key: $key})
			WITH d, d.key AS deletedKey
			DETACH DELETE d
			RETURN count(deletedKey) AS deleted
		`, map[string]interface{}{"key": key})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		if deleted, _ := record.Get("deleted"); toInt(deleted) == 0 {
			return nil, ErrNotFound
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Count returns the number of documents in a collection
func (s *Neo4jStore) Count(ctx context.Context, collection string) (int, error) {
	results, err := s.client.ExecuteRead(ctx, `
		MATCH (d:Document {collection: $collection})
		RETURN count(d) AS total
	`, map[string]interface{}{"collection": collection})
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return int(toInt(results[0]["total"])), nil
}

// encodeProperties turns normalized fields into values Neo4j can hold as properties
func encodeProperties(fields map[string]interface{}) (map[string]interface{}, error) {
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return nil, err
	}

	props := make(map[string]interface{}, len(normalized)+1)
	jsonFields := []string{}
	for key, value := range normalized {
		switch key {
		case propKey, propCollection, propID, propJSON, propCreated:
			return nil, fmt.Errorf("field name %q is reserved", key)
		}
		if value == nil {
			continue
		}
		if isPropertyValue(value) {
			props[key] = value
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		props[key] = string(raw)
		jsonFields = append(jsonFields, key)
	}
	props[propJSON] = jsonFields
	return props, nil
}

// isPropertyValue reports whether Neo4j can store value directly
func isPropertyValue(value interface{}) bool {
	switch v := value.(type) {
	case string, bool, int64, float64, time.Time:
		return true
	case []interface{}:
		if len(v) == 0 {
			return false
		}
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func decodeDocument(raw interface{}) (Document, error) {
	props, ok := raw.(map[string]interface{})
	if !ok {
		return Document{}, fmt.Errorf("unexpected node properties type %T", raw)
	}

	jsonFields := map[string]bool{}
	switch list := props[propJSON].(type) {
	case []interface{}:
		for _, name := range list {
			if s, ok := name.(string); ok {
				jsonFields[s] = true
			}
		}
	case []string:
		for _, name := range list {
			jsonFields[name] = true
		}
	}

	id, _ := props[propID].(string)
	fields := make(map[string]interface{}, len(props))
	for key, value := range props {
		switch key {
		case propKey, propCollection, propID, propJSON, propCreated:
			continue
		}
		if jsonFields[key] {
			encoded, _ := value.(string)
			var decoded interface{}
			if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
				return Document{}, fmt.Errorf("field %q of %s: %w", key, id, err)
			}
			value = decoded
		}
		fields[key] = value
	}

	normalized, err := NormalizeFields(fields)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: normalized}, nil
}
