package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Shop — магазин на платформе витрин.
type Shop struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Domain string    `json:"domain"`
}

// Order — заказ, полученный с платформы.
type Order struct {
	ID        string    `json:"id"`
	ShopID    uuid.UUID `json:"shop_id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product — товар каталога.
type Product struct {
	ID       string `json:"id"`
	SKU      string `json:"sku"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// Customer — покупатель магазина.
type Customer struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Client — граница внешней платформы витрин.
// Реализации (HTTP, фейки в тестах) взаимозаменяемы;
// движок знает только этот контракт.
type Client interface {
	// ListShops возвращает все магазины, доступные задачам
	// без явного target-магазина.
	ListShops(ctx context.Context) ([]Shop, error)

	// FetchOrders возвращает заказы магазина, созданные или
	// изменённые после since.
	FetchOrders(ctx context.Context, shopID uuid.UUID, since time.Time) ([]Order, error)

	// ListProducts возвращает каталог товаров магазина.
	ListProducts(ctx context.Context, shopID uuid.UUID) ([]Product, error)

	// ListCustomers возвращает покупателей магазина.
	ListCustomers(ctx context.Context, shopID uuid.UUID) ([]Customer, error)
}

// HTTPClient — Client поверх JSON HTTP API платформы.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient создаёт HTTPClient.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListShops возвращает все магазины.
func (c *HTTPClient) ListShops(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	if err := c.getJSON(ctx, "/api/shops", &shops); err != nil {
		return nil, err
	}
	return shops, nil
}

// FetchOrders возвращает заказы магазина после since.
func (c *HTTPClient) FetchOrders(ctx context.Context, shopID uuid.UUID, since time.Time) ([]Order, error) {
	path := fmt.Sprintf("/api/shops/%s/orders?since=%s",
		shopID, url.QueryEscape(since.UTC().Format(time.RFC3339)))

	var orders []Order
	if err := c.getJSON(ctx, path, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListProducts возвращает каталог товаров магазина.
func (c *HTTPClient) ListProducts(ctx context.Context, shopID uuid.UUID) ([]Product, error) {
	path := fmt.Sprintf("/api/shops/%s/products", shopID)

	var products []Product
	if err := c.getJSON(ctx, path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListCustomers возвращает покупателей магазина.
func (c *HTTPClient) ListCustomers(ctx context.Context, shopID uuid.UUID) ([]Customer, error) {
	path := fmt.Sprintf("/api/shops/%s/customers", shopID)

	var customers []Customer
	if err := c.getJSON(ctx, path, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
