package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no document exists under the requested id
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken
	ErrAlreadyExists = errors.New("document already exists")
)

// DocumentStore is a schemaless collection/id store. Each call is atomic per document
// and nothing spans documents.
type DocumentStore interface {
	// Add stores fields under a generated id and returns it
	Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	// Create stores fields under id, failing with ErrAlreadyExists if it is taken
	Create(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Get(ctx context.Context, collection, id string) (Document, error)
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Update merges fields into an existing document
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string) (int, error)
}

// Filter is an equality condition on a top-level field
type Filter struct {
	Field string
	Value interface{}
}

// Query selects documents of one collection
type Query struct {
	Where      []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where starts a query with a single equality filter
func Where(field string, value interface{}) Query {
	return Query{Where: []Filter{{Field: field, Value: value}}}
}

// Order sets the sort field of the query
func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

// Document is one stored record. Field values are normalized: integers are int64,
// floats are float64, timestamps are UTC time.Time, lists are []interface{} and
// nested objects are map[string]interface{}.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// String returns a string field or ""
func (d Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Float returns a numeric field as float64
func (d Document) Float(key string) float64 {
	return toFloat(d.Fields[key])
}

// Int returns a numeric field as int
func (d Document) Int(key string) int {
	return int(toInt(d.Fields[key]))
}

// Bool returns a bool field or false
func (d Document) Bool(key string) bool {
	b, _ := d.Fields[key].(bool)
	return b
}

// Time returns a timestamp field or the zero time
func (d Document) Time(key string) time.Time {
	return toTime(d.Fields[key])
}

// Strings returns a list field whose elements are strings
func (d Document) Strings(key string) []string {
	list, _ := d.Fields[key].([]interface{})
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Map returns a nested object field
func (d Document) Map(key string) Document {
	m, _ := d.Fields[key].(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	return Document{Fields: m}
}

// Maps returns a list field whose elements are nested objects
func (d Document) Maps(key string) []Document {
	list, _ := d.Fields[key].([]interface{})
	out := make([]Document, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, Document{Fields: m})
		}
	}
	return out
}

// NormalizeFields deep-copies fields into the canonical value shapes
func NormalizeFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		normalized, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case time.Time:
		return v.UTC(), nil
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case map[string]interface{}:
		return NormalizeFields(v)
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			normalized, err := NormalizeFields(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	default:
		// Structs and other shapes go through their JSON form
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported value of type %T: %w", v, err)
		}
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, err
		}
		return normalizeValue(decoded)
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// compareValues orders two normalized values of the same kind; mismatched or
// unordered kinds compare equal
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
		}
	case int64, float64:
		if _, ok := b.(string); ok {
			return 0
		}
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if !av {
				return -1
			}
			return 1
		}
	}
	return 0
}

// valuesEqual compares a stored value with a filter value after normalization
func valuesEqual(stored, filter interface{}) bool {
	switch s := stored.(type) {
	case int64, float64:
		switch filter.(type) {
		case int64, float64:
			return toFloat(s) == toFloat(filter)
		}
		return false
	case time.Time:
		f, ok := filter.(time.Time)
		return ok && s.Equal(f)
	case string, bool, nil:
		return stored == filter
	default:
		return false
	}
}
