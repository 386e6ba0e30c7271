package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/storefront/models"
)

func TestCart_AddMergesAndPrices(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	uid := s.buyer.ID.Hex()

	_, svcErr := s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "S", Quantity: 1})
	require.Nil(t, svcErr)
	view, svcErr := s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "S", Quantity: 1})
	require.Nil(t, svcErr)

	require.Len(t, view.Items, 1)
	line := view.Items[0]
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "Cotton Shirt", line.Name)
	assert.Equal(t, 900.0, line.FinalPrice)
	assert.Equal(t, 1800.0, line.LineTotal)
	assert.True(t, line.Available)
	assert.Equal(t, 1800.0, view.Subtotal)
	assert.Equal(t, 99.0, view.DeliveryFee)
	assert.Equal(t, 1899.0, view.Total)
	assert.Equal(t, "INR", view.Currency)
}

func TestCart_AddRejects(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	uid := s.buyer.ID.Hex()

	_, svcErr := s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "M", Quantity: 3})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	_, svcErr = s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "XL", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	_, svcErr = s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: "0123456789abcdef01234567", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)

	_, svcErr = s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.mug.ID.Hex(), Quantity: 0})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	view, svcErr := s.cart.GetCart(ctx, uid)
	require.Nil(t, svcErr)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0.0, view.Total)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	uid := s.buyer.ID.Hex()

	_, svcErr := s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.mug.ID.Hex(), Quantity: 1})
	require.Nil(t, svcErr)
	_, svcErr = s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "S", Quantity: 1})
	require.Nil(t, svcErr)

	view, svcErr := s.cart.UpdateItem(ctx, uid, &models.CartItemRequest{ProductID: s.mug.ID.Hex(), Quantity: 4})
	require.Nil(t, svcErr)
	assert.Equal(t, 4, view.Items[0].Quantity)

	view, svcErr = s.cart.UpdateItem(ctx, uid, &models.CartItemRequest{ProductID: s.mug.ID.Hex(), Quantity: 0})
	require.Nil(t, svcErr)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "S", view.Items[0].Size)

	_, svcErr = s.cart.RemoveItem(ctx, uid, s.shirt.ID.Hex(), "M")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)

	view, svcErr = s.cart.RemoveItem(ctx, uid, s.shirt.ID.Hex(), "S")
	require.Nil(t, svcErr)
	assert.Empty(t, view.Items)
	assert.Empty(t, s.carts.items)
}

func TestCart_UnavailableLinesAreNotCharged(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	uid := s.buyer.ID.Hex()

	_, svcErr := s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.mug.ID.Hex(), Quantity: 2})
	require.Nil(t, svcErr)
	_, svcErr = s.cart.AddItem(ctx, uid, &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "M", Quantity: 2})
	require.Nil(t, svcErr)

	s.stock.set(s.shirt.ID, "M", 1)

	view, svcErr := s.cart.GetCart(ctx, uid)
	require.Nil(t, svcErr)
	require.Len(t, view.Items, 2)
	assert.True(t, view.Items[0].Available)
	assert.False(t, view.Items[1].Available)
	assert.Equal(t, 600.0, view.Subtotal)

	require.Nil(t, s.cart.Clear(ctx, uid))
	view, svcErr = s.cart.GetCart(ctx, uid)
	require.Nil(t, svcErr)
	assert.Empty(t, view.Items)
}
