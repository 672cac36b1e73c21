package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yishak-cs/restaurant_orders/internal/cart"
	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/events"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
)

var testAddress = models.DeliveryAddress{
	Street:  "1 Main St",
	City:    "Addis Ababa",
	State:   "AA",
	ZipCode: "1000",
	Phone:   "+251 911 000000",
}

var testUser = models.User{UID: "user-1", Email: "ana@example.com", Role: models.RoleCustomer}

type checkoutFixture struct {
	store     *flakyStore
	publisher *recordingPublisher
	svc       *CheckoutService
	ls        *storage.Memory
	cart      *cart.Store
	sleeps    []time.Duration
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		store:     &flakyStore{DocumentStore: database.NewMemoryStore()},
		publisher: &recordingPublisher{},
		ls:        storage.NewMemory(),
	}
	f.svc = NewCheckoutService(f.store, f.publisher, nil, DefaultRetryConfig(), quietLogger())
	f.svc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	f.cart = cart.NewStore(f.ls, quietLogger())
	return f
}

func (f *checkoutFixture) fillCart() {
	f.cart.Add(models.CartLineItem{ID: "r1", Name: "Tibs", Price: 10.00})
	f.cart.Add(models.CartLineItem{ID: "r1", Name: "Tibs", Price: 10.00})
	f.cart.Add(models.CartLineItem{ID: "r2", Name: "Shiro", Price: 5.50})
}

func TestPlaceOrder_WritesSnapshotAndClearsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	ctx := context.Background()

	id, err := f.svc.PlaceOrder(ctx, testUser, testAddress, f.cart, f.ls)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := f.store.Get(ctx, database.CollectionOrders, id)
	require.NoError(t, err)
	order := orderFromDocument(doc)
	assert.Equal(t, 25.50, order.Total)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, testUser.UID, order.UserID)
	assert.Equal(t, testAddress, order.DeliveryAddress)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.False(t, order.CreatedAt.IsZero())

	assert.Empty(t, f.cart.Items())
	_, ok, err := f.ls.GetItem(JournalKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{events.KeyOrderCreated}, f.publisher.keys())
}

func TestPlaceOrder_ValidationListsEveryMissingField(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()

	_, err := f.svc.PlaceOrder(context.Background(), testUser, models.DeliveryAddress{Street: "  ", City: "Adama"}, f.cart, f.ls)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"street", "state", "zipCode", "phone"}, verr.Fields)

	assert.Equal(t, 0, f.store.createCalls)
	assert.Len(t, f.cart.Items(), 2)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), testUser, testAddress, f.cart, f.ls)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, f.store.createCalls)
}

func TestPlaceOrder_RetriesTransientWriteFailures(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	f.store.createFailures = 2

	id, err := f.svc.PlaceOrder(context.Background(), testUser, testAddress, f.cart, f.ls)
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.createCalls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, f.sleeps)

	count, err := f.store.Count(context.Background(), database.CollectionOrders)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, id)
	assert.Empty(t, f.cart.Items())
}

func TestPlaceOrder_FailedWriteKeepsCartAndJournal(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	f.store.createFailures = 3
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, testUser, testAddress, f.cart, f.ls)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Len(t, f.cart.Items(), 2)
	_, ok, err := f.ls.GetItem(JournalKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.publisher.keys())

	// The failed checkout is not finished behind the user's back
	_, resumed, err := f.svc.Resume(ctx, f.cart, f.ls)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Len(t, f.cart.Items(), 2)
	_, ok, err = f.ls.GetItem(JournalKey)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := f.svc.PlaceOrder(ctx, testUser, testAddress, f.cart, f.ls)
	require.NoError(t, err)
	count, err := f.store.Count(ctx, database.CollectionOrders)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = f.store.Get(ctx, database.CollectionOrders, id)
	assert.NoError(t, err)
	assert.Empty(t, f.cart.Items())
}

func TestPlaceOrder_RetryAfterFailureUsesCurrentCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	f.store.createFailures = 3
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, testUser, testAddress, f.cart, f.ls)
	require.Error(t, err)

	// Another user signs in on the same client and changes the cart and address
	f.cart.Add(models.CartLineItem{ID: "r3", Name: "Kitfo", Price: 12.00})
	other := models.User{UID: "user-2", Email: "ben@example.com", Role: models.RoleCustomer}
	addr := testAddress
	addr.Street = "22 Bole Rd"

	id, err := f.svc.PlaceOrder(ctx, other, addr, f.cart, f.ls)
	require.NoError(t, err)

	order, err := NewOrderService(f.store).GetForUser(ctx, other.UID, id)
	require.NoError(t, err)
	assert.Equal(t, "user-2", order.UserID)
	assert.Equal(t, "22 Bole Rd", order.DeliveryAddress.Street)
	require.Len(t, order.Items, 3)
	assert.Equal(t, "r3", order.Items[2].ID)
	assert.Equal(t, 37.50, order.Total)

	count, err := f.store.Count(ctx, database.CollectionOrders)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, f.cart.Items())
}

// addingStore runs onCreate before every write
type addingStore struct {
	database.DocumentStore
	onCreate func()
}

func (s *addingStore) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if s.onCreate != nil {
		s.onCreate()
	}
	return s.DocumentStore.Create(ctx, collection, id, fields)
}

func TestPlaceOrder_KeepsItemsAddedDuringWrite(t *testing.T) {
	f := newCheckoutFixture(t)
	f.cart.Add(models.CartLineItem{ID: "r1", Name: "Tibs", Price: 10.00})
	f.svc.store = &addingStore{
		DocumentStore: f.store,
		onCreate: func() {
			f.cart.Add(models.CartLineItem{ID: "r9", Name: "Juice", Price: 3.00})
		},
	}
	ctx := context.Background()

	id, err := f.svc.PlaceOrder(ctx, testUser, testAddress, f.cart, f.ls)
	require.NoError(t, err)

	order, err := NewOrderService(f.store).GetForUser(ctx, testUser.UID, id)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "r1", order.Items[0].ID)

	items := f.cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "r9", items[0].ID)
}

type stickyCart struct {
	*cart.Store
	failReset bool
}

func (c *stickyCart) RemoveSnapshot(items []models.CartLineItem) error {
	if c.failReset {
		return errors.New("storage unavailable")
	}
	return c.Store.RemoveSnapshot(items)
}

func TestResume_FinishesCheckoutAfterClearFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	c := &stickyCart{Store: f.cart, failReset: true}
	ctx := context.Background()

	id, err := f.svc.PlaceOrder(ctx, testUser, testAddress, c, f.ls)
	require.NoError(t, err)
	assert.Len(t, f.cart.Items(), 2)

	// The app instance comes back, the cart can be cleared now
	c.failReset = false
	resumedID, resumed, err := f.svc.Resume(ctx, c, f.ls)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, id, resumedID)
	assert.Empty(t, f.cart.Items())

	// The order was written exactly once
	assert.Equal(t, 1, f.store.createCalls)
	assert.Equal(t, []string{events.KeyOrderCreated}, f.publisher.keys())

	_, resumed, err = f.svc.Resume(ctx, c, f.ls)
	require.NoError(t, err)
	assert.False(t, resumed)
}

func TestResume_WriteAlreadyLandedCountsAsSuccess(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	ctx := context.Background()

	items, total := f.cart.Snapshot()
	order := models.Order{ID: "order-1", UserID: testUser.UID, Items: items, Total: total, Status: models.StatusPending}
	require.NoError(t, f.svc.saveJournal(f.ls, journal{Order: order}))
	require.NoError(t, f.store.Create(ctx, database.CollectionOrders, order.ID, orderFields(order)))

	id, resumed, err := f.svc.Resume(ctx, f.cart, f.ls)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, "order-1", id)
	assert.Empty(t, f.cart.Items())
	count, err := f.store.Count(ctx, database.CollectionOrders)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPlaceOrder_ResubmitAfterClearFailureReturnsPlacedOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart()
	c := &stickyCart{Store: f.cart, failReset: true}
	ctx := context.Background()

	id, err := f.svc.PlaceOrder(ctx, testUser, testAddress, c, f.ls)
	require.NoError(t, err)

	c.failReset = false
	again, err := f.svc.PlaceOrder(ctx, testUser, testAddress, c, f.ls)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, f.cart.Items())
	assert.Equal(t, 1, f.store.createCalls)
}

func TestResume_DiscardsCorruptJournal(t *testing.T) {
	f := newCheckoutFixture(t)
	require.NoError(t, f.ls.SetItem(JournalKey, "{oops"))

	_, resumed, err := f.svc.Resume(context.Background(), f.cart, f.ls)
	require.NoError(t, err)
	assert.False(t, resumed)
	_, ok, err := f.ls.GetItem(JournalKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderSnapshotSurvivesCatalogEdits(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	categoryID := seedCategory(t, f.store, "Mains")
	recipeID := seedRecipe(t, f.store, "Tibs", categoryID, 10)

	recipe, err := NewCatalogService(f.store).GetRecipe(ctx, recipeID)
	require.NoError(t, err)
	f.cart.Add(models.LineItemFromRecipe(recipe))

	id, err := f.svc.PlaceOrder(ctx, testUser, testAddress, f.cart, f.ls)
	require.NoError(t, err)

	require.NoError(t, f.store.Update(ctx, database.CollectionRecipes, recipeID, map[string]interface{}{"price": 99.0, "name": "Special Tibs"}))

	order, err := NewOrderService(f.store).GetForUser(ctx, testUser.UID, id)
	require.NoError(t, err)
	assert.Equal(t, "Tibs", order.Items[0].Name)
	assert.Equal(t, 10.0, order.Items[0].Price)
	assert.Equal(t, 10.0, order.Total)
}
