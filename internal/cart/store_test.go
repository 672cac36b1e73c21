package cart

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func recipe(id string, price float64) models.CartLineItem {
	return models.CartLineItem{ID: id, Name: "Recipe " + id, Price: price}
}

func TestStore_AddMergesById(t *testing.T) {
	s := NewStore(storage.NewMemory(), quietLogger())

	s.Add(recipe("r1", 10))
	s.Add(recipe("r1", 10))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestStore_AddIgnoresIncomingQuantity(t *testing.T) {
	s := NewStore(storage.NewMemory(), quietLogger())

	item := recipe("r1", 3)
	item.Quantity = 7
	s.Add(item)

	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestStore_SetQuantityZeroRemoves(t *testing.T) {
	s := NewStore(storage.NewMemory(), quietLogger())
	s.Add(recipe("r1", 10))
	s.Add(recipe("r2", 4))

	s.SetQuantity("r1", 0)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "r2", items[0].ID)

	s.SetQuantity("r2", 5)
	assert.Equal(t, 5, s.Items()[0].Quantity)

	s.SetQuantity("missing", 3)
	assert.Len(t, s.Items(), 1)
}

func TestStore_RemoveMissingIsNoop(t *testing.T) {
	s := NewStore(storage.NewMemory(), quietLogger())
	s.Add(recipe("r1", 10))

	assert.NotPanics(t, func() { s.Remove("nope") })
	assert.Len(t, s.Items(), 1)

	s.Remove("r1")
	s.Remove("r1")
	assert.Empty(t, s.Items())
}

func TestStore_TotalScenario(t *testing.T) {
	s := NewStore(storage.NewMemory(), quietLogger())
	s.Add(recipe("r1", 10.00))
	s.Add(recipe("r1", 10.00))
	s.Add(recipe("r2", 5.50))

	assert.Equal(t, 25.50, s.Total())
	assert.Equal(t, 3, s.Count())

	items, total := s.Snapshot()
	assert.Len(t, items, 2)
	assert.Equal(t, 25.50, total)

	s.Clear()
	assert.Empty(t, s.Items())
	assert.Equal(t, 0.0, s.Total())
}

func TestStore_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}
	prices := map[string]float64{"a": 1.25, "b": 3.5, "c": 10, "d": 0.99}

	for run := 0; run < 50; run++ {
		s := NewStore(storage.NewMemory(), quietLogger())
		for step := 0; step < 100; step++ {
			id := ids[rng.Intn(len(ids))]
			switch rng.Intn(3) {
			case 0:
				s.Add(recipe(id, prices[id]))
			case 1:
				s.Remove(id)
			case 2:
				s.SetQuantity(id, rng.Intn(5)-1)
			}

			items := s.Items()
			seen := map[string]bool{}
			expected := 0.0
			for _, item := range items {
				require.GreaterOrEqual(t, item.Quantity, 1)
				require.False(t, seen[item.ID], "duplicate line item %s", item.ID)
				seen[item.ID] = true
				expected += item.Price * float64(item.Quantity)
			}
			require.InDelta(t, expected, s.Total(), 0.005)
		}
	}
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	ls := storage.NewMemory()
	s := NewStore(ls, quietLogger())
	s.Add(recipe("r1", 10))
	s.Add(recipe("r1", 10))
	s.Add(recipe("r2", 5.5))
	s.SetQuantity("r2", 4)

	reloaded := NewStore(ls, quietLogger())
	assert.Equal(t, s.Items(), reloaded.Items())
	assert.Equal(t, 42.0, reloaded.Total())
}

func TestStore_CorruptPayloadResetsToEmpty(t *testing.T) {
	ls := storage.NewMemory()
	require.NoError(t, ls.SetItem(StorageKey, "{not json"))

	var s *Store
	require.NotPanics(t, func() { s = NewStore(ls, quietLogger()) })
	assert.Empty(t, s.Items())

	_, ok, err := ls.GetItem(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	s.Add(recipe("r1", 2))
	assert.Len(t, NewStore(ls, quietLogger()).Items(), 1)
}

func TestStore_DropsInvalidStoredLines(t *testing.T) {
	ls := storage.NewMemory()
	require.NoError(t, ls.SetItem(StorageKey, `[{"id":"r1","price":2,"quantity":0},{"id":"r2","price":3,"quantity":2}]`))

	s := NewStore(ls, quietLogger())
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "r2", items[0].ID)
}

type failingStorage struct {
	*storage.Memory
	failWrites bool
}

func (f *failingStorage) SetItem(key, value string) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Memory.SetItem(key, value)
}

func TestStore_ResetReportsWriteFailure(t *testing.T) {
	ls := &failingStorage{Memory: storage.NewMemory()}
	s := NewStore(ls, quietLogger())
	s.Add(recipe("r1", 2))

	ls.failWrites = true
	assert.NotPanics(t, func() { s.Add(recipe("r2", 1)) })
	assert.Error(t, s.Reset())
	assert.Empty(t, s.Items())

	ls.failWrites = false
	assert.NoError(t, s.Reset())
}

func TestStore_RemoveSnapshotKeepsLaterAdditions(t *testing.T) {
	ls := storage.NewMemory()
	s := NewStore(ls, quietLogger())
	s.Add(recipe("r1", 10))
	s.Add(recipe("r2", 4))
	snapshot, _ := s.Snapshot()

	// Added while the snapshot was being checked out
	s.Add(recipe("r1", 10))
	s.Add(recipe("r9", 7))

	require.NoError(t, s.RemoveSnapshot(snapshot))
	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "r1", items[0].ID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "r9", items[1].ID)

	reloaded := NewStore(ls, quietLogger())
	assert.Equal(t, items, reloaded.Items())
}

func TestStore_RemoveSnapshotWriteFailureLeavesCart(t *testing.T) {
	ls := &failingStorage{Memory: storage.NewMemory()}
	s := NewStore(ls, quietLogger())
	s.Add(recipe("r1", 2))
	s.Add(recipe("r1", 2))
	snapshot, _ := s.Snapshot()

	ls.failWrites = true
	assert.Error(t, s.RemoveSnapshot(snapshot))
	require.Len(t, s.Items(), 1)
	assert.Equal(t, 2, s.Items()[0].Quantity)

	ls.failWrites = false
	require.NoError(t, s.RemoveSnapshot(snapshot))
	assert.Empty(t, s.Items())
}
