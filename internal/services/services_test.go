package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/yishak-cs/restaurant_orders/internal/database"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// flakyStore fails the next createFailures order writes
type flakyStore struct {
	database.DocumentStore
	mu             sync.Mutex
	createFailures int
	createCalls    int
}

func (s *flakyStore) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	s.createCalls++
	fail := s.createFailures > 0
	if fail {
		s.createFailures--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return s.DocumentStore.Create(ctx, collection, id, fields)
}

type publishedEvent struct {
	key   string
	value any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, value: v})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func seedCategory(t *testing.T, store database.DocumentStore, name string) string {
	t.Helper()
	id, err := store.Add(context.Background(), database.CollectionCategories, map[string]interface{}{
		"name":  name,
		"image": "data:image/jpeg;base64,AAAA",
	})
	require.NoError(t, err)
	return id
}

func seedRecipe(t *testing.T, store database.DocumentStore, name, categoryID string, price float64) string {
	t.Helper()
	id, err := store.Add(context.Background(), database.CollectionRecipes, map[string]interface{}{
		"name":        name,
		"categoryId":  categoryID,
		"ingredients": []string{"salt"},
		"price":       price,
		"image":       "data:image/jpeg;base64,AAAA",
	})
	require.NoError(t, err)
	return id
}
