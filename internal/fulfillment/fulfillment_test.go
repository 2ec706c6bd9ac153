package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"farmstore_back_end/internal/cartcodec"
	"farmstore_back_end/internal/models"
	"farmstore_back_end/internal/repository"
)

type mockOrders struct{ mock.Mock }

func (m *mockOrders) Create(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrders) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrders) GenerateOrderNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockProducts struct{ mock.Mock }

func (m *mockProducts) FindByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockProducts) IncrementStock(ctx context.Context, id string, delta int) error {
	return m.Called(ctx, id, delta).Error(0)
}

type mockDiscounts struct{ mock.Mock }

func (m *mockDiscounts) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Discount), args.Error(1)
}

func (m *mockDiscounts) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) RecordSale(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func cartMetadata(t *testing.T, entries []cartcodec.Entry) map[string]string {
	t.Helper()
	payload, format, idEnc, err := cartcodec.Encode(entries, cartcodec.MetadataBudget)
	require.NoError(t, err)
	return map[string]string{
		MetaCart:           payload,
		MetaCartFormat:     format,
		MetaCartIDEncoding: idEnc,
		MetaCodecVersion:   cartcodec.Version,
	}
}

func TestFulfillCreatesOrder(t *testing.T) {
	productID := primitive.NewObjectID()
	product := &models.Product{ID: productID, Name: "Raw honey 500g", Price: 8.50, ImageURL: "/img/honey.jpg"}

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	products.On("FindByID", mock.Anything, productID.Hex()).Return(product, nil)
	products.On("IncrementStock", mock.Anything, productID.Hex(), -2).Return(nil)
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-abc123", nil)

	var created *models.Order
	orders.On("Create", mock.Anything, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.Order) }).
		Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	meta := cartMetadata(t, []cartcodec.Entry{
		{ProductID: productID.Hex(), Quantity: 2, PriceCents: 850, Name: "Raw honey 500g"},
	})
	meta[MetaAddressLine] = "12 Orchard Lane"
	meta[MetaAddressCity] = "Ghent"
	meta[MetaPostalCode] = "9000"

	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:      "cs_test_1",
		AmountTotal:    1700,
		AmountSubtotal: 1700,
		CustomerName:   "Alice Martin",
		CustomerEmail:  "alice@example.com",
		Metadata:       meta,
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, created, order)
	assert.Equal(t, "FS-20260831-abc123", order.OrderNumber)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.True(t, order.IsPaid)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, "cs_test_1", order.StripeSessionID)
	assert.InDelta(t, 17.00, order.TotalPrice, 0.001)
	assert.Equal(t, "Ghent", order.ShippingAddress.City)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	require.NotNil(t, item.ProductID)
	assert.Equal(t, productID, *item.ProductID)
	assert.Equal(t, "Raw honey 500g", item.Name)
	assert.InDelta(t, 8.50, item.Price, 0.001)
	assert.Equal(t, 2, item.Quantity)

	products.AssertCalled(t, "IncrementStock", mock.Anything, productID.Hex(), -2)
}

func TestFulfillDuplicateSessionReturnsExisting(t *testing.T) {
	productID := primitive.NewObjectID()
	existing := &models.Order{OrderNumber: "FS-20260830-ffee00", StripeSessionID: "cs_dup"}

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	products.On("FindByID", mock.Anything, productID.Hex()).
		Return(&models.Product{ID: productID, Name: "Eggs", Price: 4}, nil)
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-aaaaaa", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateSession)
	orders.On("FindBySessionID", mock.Anything, "cs_dup").Return(existing, nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	meta := cartMetadata(t, []cartcodec.Entry{{ProductID: productID.Hex(), Quantity: 1}})
	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:   "cs_dup",
		AmountTotal: 400,
		Metadata:    meta,
	})

	require.NoError(t, err)
	assert.Equal(t, existing, order)
	// Redelivery must not re-run side effects for the original order.
	products.AssertNotCalled(t, "IncrementStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestFulfillDeletedProductFallsBackToMetadata(t *testing.T) {
	goneID := primitive.NewObjectID()

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	products.On("FindByID", mock.Anything, goneID.Hex()).Return(nil, repository.ErrNotFound)
	products.On("IncrementStock", mock.Anything, goneID.Hex(), -3).Return(nil)
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-b0b0b0", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	meta := cartMetadata(t, []cartcodec.Entry{
		{ProductID: goneID.Hex(), Quantity: 3, PriceCents: 425, Name: "Goat cheese"},
	})
	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:      "cs_gone",
		AmountTotal:    1275,
		AmountSubtotal: 1275,
		Metadata:       meta,
	})

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "Goat cheese", item.Name)
	assert.InDelta(t, 4.25, item.Price, 0.001)
	require.NotNil(t, item.ProductID)
	assert.Equal(t, goneID, *item.ProductID)
	assert.Equal(t, placeholderImage, item.Image)
}

func TestFulfillAveragedFallbackWhenTierDroppedPrices(t *testing.T) {
	goneID := primitive.NewObjectID()

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	products.On("FindByID", mock.Anything, goneID.Hex()).Return(nil, repository.ErrNotFound)
	products.On("IncrementStock", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-c1c1c1", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	// Minimal tier carries only ids and quantities.
	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:      "cs_min",
		AmountTotal:    2000,
		AmountSubtotal: 2000,
		Metadata: map[string]string{
			MetaCart:           `[["` + goneID.Hex() + `",4]]`,
			MetaCartFormat:     cartcodec.FormatMinimal,
			MetaCartIDEncoding: cartcodec.IDEncodingRaw,
		},
	})

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Unavailable product", order.Items[0].Name)
	assert.InDelta(t, 5.00, order.Items[0].Price, 0.001)
}

func TestFulfillDiscountSnapshot(t *testing.T) {
	productID := primitive.NewObjectID()
	discountID := primitive.NewObjectID()
	discount := &models.Discount{ID: discountID, Code: "SPRING10", Type: models.DiscountPercentage, Value: 10}

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	products.On("FindByID", mock.Anything, productID.Hex()).
		Return(&models.Product{ID: productID, Name: "Cider", Price: 10}, nil)
	products.On("IncrementStock", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	discounts.On("FindByID", mock.Anything, discountID.Hex()).Return(discount, nil)
	discounts.On("IncrementUsage", mock.Anything, discountID).Return(nil)
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-d2d2d2", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	meta := cartMetadata(t, []cartcodec.Entry{{ProductID: productID.Hex(), Quantity: 1, PriceCents: 1000}})
	meta[MetaDiscountID] = discountID.Hex()
	meta[MetaDiscountCode] = "SPRING10"
	meta[MetaDiscountType] = models.DiscountPercentage

	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:      "cs_disc",
		AmountTotal:    900,
		AmountSubtotal: 1000,
		AmountDiscount: 100,
		Metadata:       meta,
	})

	require.NoError(t, err)
	require.NotNil(t, order.Discount)
	assert.Equal(t, discountID, order.Discount.DiscountID)
	assert.Equal(t, "SPRING10", order.Discount.Code)
	assert.InDelta(t, 1.00, order.Discount.Amount, 0.001)
	discounts.AssertCalled(t, "IncrementUsage", mock.Anything, discountID)
}

func TestFulfillLapsedDiscountNotSnapshotted(t *testing.T) {
	productID := primitive.NewObjectID()

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	products.On("FindByID", mock.Anything, productID.Hex()).
		Return(&models.Product{ID: productID, Name: "Cider", Price: 10}, nil)
	products.On("IncrementStock", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-e3e3e3", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	// Discount was recorded at checkout but the processor applied no
	// reduction, so the order carries no snapshot and usage stays flat.
	meta := cartMetadata(t, []cartcodec.Entry{{ProductID: productID.Hex(), Quantity: 1, PriceCents: 1000}})
	meta[MetaDiscountID] = primitive.NewObjectID().Hex()

	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:      "cs_lapsed",
		AmountTotal:    1000,
		AmountSubtotal: 1000,
		AmountDiscount: 0,
		Metadata:       meta,
	})

	require.NoError(t, err)
	assert.Nil(t, order.Discount)
	discounts.AssertNotCalled(t, "IncrementUsage", mock.Anything, mock.Anything)
}

func TestFulfillSideEffectFailuresAreSwallowed(t *testing.T) {
	productID := primitive.NewObjectID()

	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)
	ledger := new(mockLedger)

	products.On("FindByID", mock.Anything, productID.Hex()).
		Return(&models.Product{ID: productID, Name: "Sourdough", Price: 6}, nil)
	products.On("IncrementStock", mock.Anything, productID.Hex(), -1).
		Return(errors.New("mongo down"))
	ledger.On("RecordSale", mock.Anything, mock.Anything).Return(errors.New("ledger down"))
	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-f4f4f4", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts, Ledger: ledger}

	meta := cartMetadata(t, []cartcodec.Entry{{ProductID: productID.Hex(), Quantity: 1, PriceCents: 600}})
	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:      "cs_flaky",
		AmountTotal:    600,
		AmountSubtotal: 600,
		Metadata:       meta,
	})

	require.NoError(t, err)
	require.NotNil(t, order)
	ledger.AssertCalled(t, "RecordSale", mock.Anything, mock.Anything)
}

func TestFulfillUnrecoverableCartStillCreatesOrder(t *testing.T) {
	orders := new(mockOrders)
	products := new(mockProducts)
	discounts := new(mockDiscounts)

	orders.On("GenerateOrderNumber", mock.Anything).Return("FS-20260831-a5a5a5", nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := &Engine{Orders: orders, Products: products, Discounts: discounts}

	order, err := engine.Fulfill(context.Background(), CompletedCheckout{
		SessionID:     "cs_empty",
		AmountTotal:   1500,
		CustomerEmail: "bob@example.com",
		Metadata: map[string]string{
			MetaCart:       "%%not-json%%",
			MetaCartFormat: cartcodec.FormatFull,
		},
	})

	require.NoError(t, err)
	assert.Empty(t, order.Items)
	assert.InDelta(t, 15.00, order.TotalPrice, 0.001)
	assert.True(t, order.IsPaid)
}
