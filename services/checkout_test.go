package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"checkout-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCartSnapshotFreezesPrices(t *testing.T) {
	env := newTestEnv()
	checkout := env.checkoutService(&stubShippingClient{rate: decimal.Zero}, "0")

	userID := uuid.New().String()
	env.seedCart(userID,
		models.CartItem{ProductID: uuid.New().String(), Name: "Keyboard", UnitPrice: decimal.RequireFromString("299.99"), Quantity: 2},
		models.CartItem{ProductID: uuid.New().String(), Name: "Mouse", UnitPrice: decimal.RequireFromString("25.50"), Quantity: 1},
	)

	snapshot, serr := checkout.ResolveCartSnapshot(context.Background(), userID)
	require.Nil(t, serr)
	assert.Equal(t, "625.48", snapshot.Subtotal.StringFixed(2))
	assert.Len(t, snapshot.Items, 2)

	// Emptying the cart after the snapshot changes nothing in it.
	require.NoError(t, env.carts.DeleteCart(context.Background(), userID))
	assert.Len(t, snapshot.Items, 2)
	assert.Equal(t, "625.48", snapshot.Subtotal.StringFixed(2))
}

func TestResolveCartSnapshotEmptyCart(t *testing.T) {
	env := newTestEnv()
	checkout := env.checkoutService(&stubShippingClient{rate: decimal.Zero}, "0")

	// Missing cart and present-but-empty cart both reject.
	_, serr := checkout.ResolveCartSnapshot(context.Background(), uuid.New().String())
	require.NotNil(t, serr)
	assert.Equal(t, "Cart is empty", serr.Message)

	userID := uuid.New().String()
	env.seedCart(userID)
	_, serr = checkout.ResolveCartSnapshot(context.Background(), userID)
	require.NotNil(t, serr)
	assert.Equal(t, "Cart is empty", serr.Message)
}

func TestMaterializeOrderSnapshotsLineItems(t *testing.T) {
	env := newTestEnv()
	checkout := env.checkoutService(&stubShippingClient{rate: decimal.RequireFromString("4.99")}, "0.2")

	productID := uuid.New().String()
	snapshot := &models.CartSnapshot{
		Items: []models.CartItem{
			{ProductID: productID, Name: "Keyboard", UnitPrice: decimal.RequireFromString("299.99"), Quantity: 2},
		},
		Subtotal: decimal.RequireFromString("599.98"),
	}

	order, serr := checkout.MaterializeOrder(context.Background(), uuid.New(), snapshot, completeAddress(), "standard")
	require.Nil(t, serr)

	assert.Equal(t, "724.97", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "GBP", order.Currency)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)

	require.Len(t, order.OrderItems, 1)
	item := order.OrderItems[0]
	assert.Equal(t, productID, item.ProductID.String())
	assert.Equal(t, "Keyboard", item.Name)
	assert.Equal(t, "599.98", item.Subtotal.StringFixed(2))

	var addr models.Address
	require.NoError(t, json.Unmarshal([]byte(order.ShippingAddress), &addr))
	assert.Equal(t, "Ada Lovelace", addr.FullName)
}

func TestMaterializeOrderRejectsIncompleteAddress(t *testing.T) {
	env := newTestEnv()
	checkout := env.checkoutService(&stubShippingClient{rate: decimal.Zero}, "0")

	snapshot := &models.CartSnapshot{
		Items:    []models.CartItem{{ProductID: uuid.New().String(), Name: "Widget", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1}},
		Subtotal: decimal.RequireFromString("10.00"),
	}

	addr := completeAddress()
	addr.Country = ""
	_, serr := checkout.MaterializeOrder(context.Background(), uuid.New(), snapshot, addr, "standard")
	require.NotNil(t, serr)
	assert.Equal(t, "Shipping address is incomplete", serr.Message)
}

func TestMaterializeOrderShippingFailure(t *testing.T) {
	env := newTestEnv()
	checkout := env.checkoutService(&stubShippingClient{err: assert.AnError}, "0")

	snapshot := &models.CartSnapshot{
		Items:    []models.CartItem{{ProductID: uuid.New().String(), Name: "Widget", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1}},
		Subtotal: decimal.RequireFromString("10.00"),
	}

	_, serr := checkout.MaterializeOrder(context.Background(), uuid.New(), snapshot, completeAddress(), "standard")
	require.NotNil(t, serr)
	assert.Equal(t, 500, serr.StatusCode)
}
