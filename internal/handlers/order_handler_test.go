package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"hisui-backend/internal/models"
	"hisui-backend/internal/services"
	"hisui-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newOrderRouter builds the order routes over the in-memory stores with a stub
// auth middleware injecting userID, so requests exercise binding, the service
// and the error mapping without JWTs.
func newOrderRouter(t *testing.T) (*gin.Engine, *store.Memory, *store.Stores) {
	t.Helper()
	mem, stores := store.NewMemory()
	portfolios := services.NewPortfolioService(stores)
	catalog := services.NewCatalogService(stores)
	orders := services.NewOrderService(stores, portfolios, catalog, nil, nil)
	handler := NewOrderHandler(orders)

	router := gin.New()
	router.POST("/portfolios/:portfolioId/orders", func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Test-User"))
		handler.CreateOrder(c)
	})
	router.GET("/orders", func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Test-User"))
		handler.ListOrders(c)
	})
	return router, mem, stores
}

func seedOrderFixtures(t *testing.T, stores *store.Stores) (ownerID, portfolioID string) {
	t.Helper()
	ctx := context.Background()

	owner := &models.User{Email: "ana@example.com", Username: "ana", Role: models.RoleUser, IsVerified: true}
	if err := stores.Users.Insert(ctx, owner); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	portfolio := &models.Portfolio{UserID: owner.ID.Hex(), Name: "Main"}
	if err := stores.Portfolios.Insert(ctx, portfolio); err != nil {
		t.Fatalf("seed portfolio: %v", err)
	}
	stock := &models.Stock{Name: "Petrobras", Ticker: "PETR4"}
	if err := stores.Stocks.Insert(ctx, stock); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return owner.ID.Hex(), portfolio.ID.Hex()
}

func postOrder(router *gin.Engine, userID, portfolioID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/portfolios/"+portfolioID+"/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validOrderBody = `{
	"ticker": "PETR4",
	"type": "STOCK",
	"action": "BUY",
	"order_price": 38.5,
	"order_currency": "brl",
	"amount": 10,
	"order_execution_date": "2024/05/10 14:30"
}`

func TestCreateOrderEndpoint(t *testing.T) {
	router, mem, stores := newOrderRouter(t)
	ownerID, portfolioID := seedOrderFixtures(t, stores)

	w := postOrder(router, ownerID, portfolioID, validOrderBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message string       `json:"message"`
		Order   models.Order `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "Order created successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Order.OrderCurrency != "BRL" {
		t.Errorf("currency = %q, want BRL (uppercased)", resp.Order.OrderCurrency)
	}
	if mem.OrderCount() != 1 {
		t.Errorf("stored orders = %d, want 1", mem.OrderCount())
	}
}

func TestCreateOrderEndpointBadDate(t *testing.T) {
	router, _, stores := newOrderRouter(t)
	ownerID, portfolioID := seedOrderFixtures(t, stores)

	body := strings.Replace(validOrderBody, "2024/05/10 14:30", "10-05-2024", 1)
	w := postOrder(router, ownerID, portfolioID, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "The order execution date must be in format YYYY/MM/DD HH:mm or YYYY/MM/DD") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateOrderEndpointDateOnlyLayout(t *testing.T) {
	router, _, stores := newOrderRouter(t)
	ownerID, portfolioID := seedOrderFixtures(t, stores)

	body := strings.Replace(validOrderBody, "2024/05/10 14:30", "2024/05/10", 1)
	w := postOrder(router, ownerID, portfolioID, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateOrderEndpointStatusMapping(t *testing.T) {
	router, _, stores := newOrderRouter(t)
	ownerID, portfolioID := seedOrderFixtures(t, stores)

	intruder := &models.User{Email: "beto@example.com", Username: "beto", Role: models.RoleUser, IsVerified: true}
	if err := stores.Users.Insert(context.Background(), intruder); err != nil {
		t.Fatalf("seed intruder: %v", err)
	}

	// Foreign portfolio -> 403.
	w := postOrder(router, intruder.ID.Hex(), portfolioID, validOrderBody)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign portfolio status = %d, body = %s", w.Code, w.Body.String())
	}

	// Unknown portfolio -> 404.
	w = postOrder(router, ownerID, "64f000000000000000000000", validOrderBody)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown portfolio status = %d, body = %s", w.Code, w.Body.String())
	}

	// Unknown ticker -> 404.
	body := strings.Replace(validOrderBody, "PETR4", "FAKE", 1)
	w = postOrder(router, ownerID, portfolioID, body)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown ticker status = %d, body = %s", w.Code, w.Body.String())
	}

	// SELL without a prior BUY -> 400.
	body = strings.Replace(validOrderBody, "BUY", "SELL", 1)
	w = postOrder(router, ownerID, portfolioID, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("sell without buy status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "You don't own PETR4 in this portfolio to can be sell it") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	router, mem, stores := newOrderRouter(t)
	ownerID, portfolioID := seedOrderFixtures(t, stores)

	for _, body := range []string{
		strings.Replace(validOrderBody, `"STOCK"`, `"BOND"`, 1),
		strings.Replace(validOrderBody, `"BUY"`, `"HOLD"`, 1),
		strings.Replace(validOrderBody, "38.5", "-1", 1),
		strings.Replace(validOrderBody, `"amount": 10`, `"amount": 0`, 1),
	} {
		w := postOrder(router, ownerID, portfolioID, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d for body %s", w.Code, body)
		}
	}
	if mem.OrderCount() != 0 {
		t.Errorf("invalid requests persisted %d orders", mem.OrderCount())
	}
}

func TestListOrdersEndpointPaginationBounds(t *testing.T) {
	router, _, stores := newOrderRouter(t)
	ownerID, _ := seedOrderFixtures(t, stores)

	cases := []struct {
		query   string
		message string
	}{
		{"page=0", "The page must be at least 1."},
		{"page=abc", "The page must be a number."},
		{"limit=0", "The limit must be at least 1."},
		{"limit=101", "The limit cannot exceed 100."},
		{"limit=abc", "The limit must be a number."},
		{"type=BOND", "The type must be one of the followings STOCK, CRYPTO"},
		{"action=HOLD", "The type must be one of the followings BUY, SELL"},
		{"order_price=abc", "The value entered isn't a number."},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/orders?"+tc.query, nil)
		req.Header.Set("X-Test-User", ownerID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", tc.query, w.Code)
		}
		if !strings.Contains(w.Body.String(), tc.message) {
			t.Errorf("%s: body = %s, want %q", tc.query, w.Body.String(), tc.message)
		}
	}
}

func TestListOrdersEndpointEmpty(t *testing.T) {
	router, _, stores := newOrderRouter(t)
	ownerID, _ := seedOrderFixtures(t, stores)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Test-User", ownerID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "No orders found with the provided filters") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestParseExecutionDate(t *testing.T) {
	if _, ok := parseExecutionDate("2024/05/10 14:30"); !ok {
		t.Error("datetime layout rejected")
	}
	got, ok := parseExecutionDate("2024/05/10")
	if !ok {
		t.Fatal("date-only layout rejected")
	}
	if want := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parsed %v, want %v", got, want)
	}
	if _, ok := parseExecutionDate("10-05-2024"); ok {
		t.Error("unknown layout accepted")
	}
}
