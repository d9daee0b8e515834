package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/services"
	"hisui-backend/internal/store"
)

// env wires the services onto the in-memory stores the way main wires them
// onto Mongo. Notifier and publisher default to nil so order creation does no
// out-of-band work unless a test installs its own.
type env struct {
	t      *testing.T
	mem    *store.Memory
	stores *store.Stores

	users      *services.UserService
	portfolios *services.PortfolioService
	catalog    *services.CatalogService
	orders     *services.OrderService
	news       *services.NewsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem, stores := store.NewMemory()
	portfolios := services.NewPortfolioService(stores)
	catalog := services.NewCatalogService(stores)
	return &env{
		t:          t,
		mem:        mem,
		stores:     stores,
		users:      services.NewUserService(stores, nil),
		portfolios: portfolios,
		catalog:    catalog,
		orders:     services.NewOrderService(stores, portfolios, catalog, nil, nil),
		news:       services.NewNewsService(stores),
	}
}

func (e *env) seedUser(email string) *models.User {
	e.t.Helper()
	user := &models.User{
		Email:      email,
		Username:   strings.SplitN(email, "@", 2)[0],
		Role:       models.RoleUser,
		IsVerified: true,
	}
	if err := e.stores.Users.Insert(context.Background(), user); err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *env) seedPortfolio(userID, name string) *models.Portfolio {
	e.t.Helper()
	portfolio, err := e.portfolios.Create(context.Background(), userID, name, "")
	if err != nil {
		e.t.Fatalf("seed portfolio: %v", err)
	}
	return portfolio
}

func (e *env) seedStock(ticker string) *models.Stock {
	e.t.Helper()
	stock, err := e.catalog.CreateStock(context.Background(), services.CreateStockInput{
		Name:   ticker + " Inc",
		Ticker: ticker,
	})
	if err != nil {
		e.t.Fatalf("seed stock %s: %v", ticker, err)
	}
	return stock
}

func (e *env) seedCrypto(ticker string) *models.Crypto {
	e.t.Helper()
	crypto, err := e.catalog.CreateCrypto(context.Background(), services.CreateCryptoInput{
		Name:   ticker + " Coin",
		Ticker: ticker,
	})
	if err != nil {
		e.t.Fatalf("seed crypto %s: %v", ticker, err)
	}
	return crypto
}

// placeOrder creates an order with fixed currency, amount and execution date;
// tests that care about those fields build the input themselves.
func (e *env) placeOrder(portfolioID, userID, ticker string, assetType models.AssetType, action models.Action, price float64) (*models.Order, error) {
	e.t.Helper()
	return e.orders.CreateOrder(context.Background(), services.CreateOrderInput{
		PortfolioID:        portfolioID,
		UserID:             userID,
		Ticker:             ticker,
		AssetType:          assetType,
		Action:             action,
		OrderPrice:         price,
		OrderCurrency:      "BRL",
		Amount:             10,
		OrderExecutionDate: time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC),
	})
}

func wantErr(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", message)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %v, want %v (err: %v)", got, kind, err)
	}
	if err.Error() != message {
		t.Fatalf("error message = %q, want %q", err.Error(), message)
	}
}
