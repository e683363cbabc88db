package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/services"
)

// CartHandler serves the session cart and wishlist.
type CartHandler struct {
	cache *query.Cache
}

func NewCartHandler(cache *query.Cache) *CartHandler {
	return &CartHandler{cache: cache}
}

type cartView struct {
	models.Cart
	Subtotal  string `json:"subtotal"`
	Shipping  string `json:"shipping"`
	ItemCount int    `json:"itemCount"`
}

func viewCart(cart models.Cart) cartView {
	return cartView{
		Cart:      cart,
		Subtotal:  cart.Subtotal().String(),
		Shipping:  cart.Shipping().String(),
		ItemCount: cart.ItemCount(),
	}
}

// GetCart returns the cart with its derived subtotal.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cart, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "cart"), middleware.GetClient(c).GetCart)
	return respondRead(c, viewCart(cart), err, viewCart(models.Cart{Items: []models.CartItem{}}))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// AddItem puts a product in the cart.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req services.AddCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		return respondError(c, respondValidation("quantity", "choose a product and a positive quantity"))
	}

	return h.mutateCart(c, "add", func(ctx context.Context, client *services.Client) (models.Cart, error) {
		return client.AddCartItem(ctx, req)
	})
}

// UpdateItem changes a line's quantity.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Quantity <= 0 {
		return respondError(c, respondValidation("quantity", "quantity must be at least 1"))
	}

	return h.mutateCart(c, lineOp(id), func(ctx context.Context, client *services.Client) (models.Cart, error) {
		return client.UpdateCartItem(ctx, id, req.Quantity)
	})
}

// RemoveItem drops a line from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	return h.mutateCart(c, lineOp(id), func(ctx context.Context, client *services.Client) (models.Cart, error) {
		return client.RemoveCartItem(ctx, id)
	})
}

// Clear empties the cart.
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	return h.mutateCart(c, "clear", func(ctx context.Context, client *services.Client) (models.Cart, error) {
		return models.Cart{Items: []models.CartItem{}}, client.ClearCart(ctx)
	})
}

func lineOp(id int64) string {
	return "line:" + strconv.FormatInt(id, 10)
}

// mutateCart serialises cart writes per visitor and operation: a second add,
// or a second write to the same line, is refused while the first runs. The
// cart key is invalidated on success so the next read, including checkout
// totals, sees the change.
func (h *CartHandler) mutateCart(c *fiber.Ctx, op string, fn func(context.Context, *services.Client) (models.Cart, error)) error {
	client := middleware.GetClient(c)
	cart, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.Cart]{
		Key:         userKey(c, "cart", "mutation", op),
		Invalidates: []query.Key{userKey(c, "cart")},
	}, func(ctx context.Context) (models.Cart, error) {
		return fn(ctx, client)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, viewCart(cart))
}

// ListWishlist returns the wishlist.
func (h *CartHandler) ListWishlist(c *fiber.Ctx) error {
	items, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "wishlist"), middleware.GetClient(c).ListWishlist)
	return respondRead(c, items, err, []models.WishlistItem{})
}

type wishlistRequest struct {
	ProductID int64 `json:"productId"`
}

// AddToWishlist saves a product.
func (h *CartHandler) AddToWishlist(c *fiber.Ctx) error {
	var req wishlistRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ProductID <= 0 {
		return respondError(c, respondValidation("productId", "choose a product"))
	}

	item, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.WishlistItem]{
		Key:         userKey(c, "wishlist", "mutation"),
		Invalidates: []query.Key{userKey(c, "wishlist")},
	}, func(ctx context.Context) (models.WishlistItem, error) {
		return middleware.GetClient(c).AddToWishlist(ctx, req.ProductID)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, item)
}

// RemoveFromWishlist drops a product.
func (h *CartHandler) RemoveFromWishlist(c *fiber.Ctx) error {
	productID, err := parseID(c, "productId")
	if err != nil {
		return err
	}

	_, err = query.Mutate(c.UserContext(), h.cache, query.Mutation[struct{}]{
		Key:         userKey(c, "wishlist", "mutation"),
		Invalidates: []query.Key{userKey(c, "wishlist")},
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, middleware.GetClient(c).RemoveFromWishlist(ctx, productID)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
