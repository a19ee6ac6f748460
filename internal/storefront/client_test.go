package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHTTPClient_ListShops(t *testing.T) {
	shops := []Shop{
		{ID: uuid.New(), Name: "Main", Domain: "main.example.com"},
		{ID: uuid.New(), Name: "Outlet", Domain: "outlet.example.com"},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/shops" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(shops)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	got, err := client.ListShops(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Main" {
		t.Errorf("unexpected shops: %+v", got)
	}
}

func TestHTTPClient_FetchOrders_SinceParam(t *testing.T) {
	shopID := uuid.New()
	since := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, shopID.String()) {
			t.Errorf("path should contain shop id, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("since"); got != "2026-03-10T12:00:00Z" {
			t.Errorf("unexpected since param %q", got)
		}
		json.NewEncoder(w).Encode([]Order{{ID: "o1", ShopID: shopID, Total: 9.99}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	orders, err := client.FetchOrders(context.Background(), shopID, since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Errorf("unexpected orders: %+v", orders)
	}
}

func TestHTTPClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	if _, err := client.ListProducts(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for non-200 response")
	} else if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should mention status code, got %v", err)
	}
}
