package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/services"
)

func TestCreateOrderBuyStock(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	order, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.ID.IsZero() {
		t.Error("order id was not assigned")
	}
	if order.StockTicker != "PETR4" {
		t.Errorf("stock_ticker = %q, want PETR4", order.StockTicker)
	}
	if order.CryptoTicker != "" {
		t.Errorf("crypto_ticker = %q, want empty", order.CryptoTicker)
	}
	if order.PortfolioID != portfolio.ID.Hex() {
		t.Errorf("portfolio_id = %q, want %q", order.PortfolioID, portfolio.ID.Hex())
	}
	if e.mem.OrderCount() != 1 {
		t.Errorf("stored orders = %d, want 1", e.mem.OrderCount())
	}
}

func TestCreateOrderBuyCrypto(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedCrypto("BTC")

	order, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "BTC", models.AssetCrypto, models.ActionBuy, 64000)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.CryptoTicker != "BTC" {
		t.Errorf("crypto_ticker = %q, want BTC", order.CryptoTicker)
	}
	if order.StockTicker != "" {
		t.Errorf("stock_ticker = %q, want empty", order.StockTicker)
	}
}

func TestCreateOrderSellAfterBuy(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionSell, 41.2); err != nil {
		t.Fatalf("sell after buy: %v", err)
	}
	if e.mem.OrderCount() != 2 {
		t.Errorf("stored orders = %d, want 2", e.mem.OrderCount())
	}
}

func TestCreateOrderSellChecksPresenceNotQuantity(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// One BUY is enough; repeated sells and larger amounts are not netted.
	for i := 0; i < 3; i++ {
		_, err := e.orders.CreateOrder(context.Background(), services.CreateOrderInput{
			PortfolioID:        portfolio.ID.Hex(),
			UserID:             user.ID.Hex(),
			Ticker:             "PETR4",
			AssetType:          models.AssetStock,
			Action:             models.ActionSell,
			OrderPrice:         40,
			OrderCurrency:      "BRL",
			Amount:             1000,
			OrderExecutionDate: time.Now(),
		})
		if err != nil {
			t.Fatalf("sell %d: %v", i, err)
		}
	}
}

func TestCreateOrderSellWithoutBuy(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")
	e.seedStock("VALE3")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy: %v", err)
	}

	_, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "VALE3", models.AssetStock, models.ActionSell, 70)
	wantErr(t, err, apperr.KindInvalidState, "You don't own VALE3 in this portfolio to can be sell it")

	if e.mem.OrderCount() != 1 {
		t.Errorf("rejected sell left %d orders, want 1", e.mem.OrderCount())
	}
}

func TestCreateOrderSellScopedToPortfolioAndType(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	first := e.seedPortfolio(user.ID.Hex(), "First")
	second := e.seedPortfolio(user.ID.Hex(), "Second")
	e.seedStock("PETR4")
	e.seedCrypto("PETR4")

	if _, err := e.placeOrder(first.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// A BUY in another portfolio does not cover the sell.
	_, err := e.placeOrder(second.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionSell, 40)
	wantErr(t, err, apperr.KindInvalidState, "You don't own PETR4 in this portfolio to can be sell it")

	// Nor does a BUY of the same ticker under the other asset type.
	_, err = e.placeOrder(first.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetCrypto, models.ActionSell, 40)
	wantErr(t, err, apperr.KindInvalidState, "You don't own PETR4 in this portfolio to can be sell it")
}

func TestCreateOrderForeignPortfolio(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser("ana@example.com")
	intruder := e.seedUser("beto@example.com")
	portfolio := e.seedPortfolio(owner.ID.Hex(), "Main")
	e.seedStock("PETR4")

	_, err := e.placeOrder(portfolio.ID.Hex(), intruder.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5)
	wantErr(t, err, apperr.KindForbidden, "You are not allowed to modify this portfolio")

	if e.mem.OrderCount() != 0 {
		t.Errorf("forbidden order was persisted, count = %d", e.mem.OrderCount())
	}
}

func TestCreateOrderUnknownPortfolio(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	e.seedStock("PETR4")

	_, err := e.placeOrder("64f000000000000000000000", user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5)
	wantErr(t, err, apperr.KindNotFound, "The portfolio doesn't exists")
}

func TestCreateOrderUnknownTicker(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")

	_, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "FAKE", models.AssetStock, models.ActionBuy, 10)
	wantErr(t, err, apperr.KindNotFound, "The stock FAKE doesn't exist in the database")

	_, err = e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "FAKE", models.AssetCrypto, models.ActionBuy, 10)
	wantErr(t, err, apperr.KindNotFound, "The crypto FAKE doesn't exist in the database")

	if e.mem.OrderCount() != 0 {
		t.Errorf("order for unknown ticker was persisted, count = %d", e.mem.OrderCount())
	}
}

func TestCreateOrderInvalidAssetType(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")

	_, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetType("BOND"), models.ActionBuy, 10)
	wantErr(t, err, apperr.KindInvalidArgument, "Invalid asset type: BOND")
}

type failingNotifier struct{}

func (failingNotifier) SendOrderConfirmation(*models.User, *models.Order) error {
	return errors.New("smtp: connection refused")
}

type capturePublisher struct{ ch chan *models.Order }

func (p *capturePublisher) PublishOrder(_ string, order *models.Order) {
	p.ch <- order
}

func TestCreateOrderSurvivesNotificationFailure(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	publisher := &capturePublisher{ch: make(chan *models.Order, 1)}
	e.orders = services.NewOrderService(e.stores, e.portfolios, e.catalog, failingNotifier{}, publisher)

	order, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if e.mem.OrderCount() != 1 {
		t.Fatalf("stored orders = %d, want 1", e.mem.OrderCount())
	}

	select {
	case published := <-publisher.ch:
		if published.ID != order.ID {
			t.Errorf("published order %s, want %s", published.ID.Hex(), order.ID.Hex())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("order was never published to the feed")
	}
}

func TestListOrdersGroupsByAssetClass(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")
	e.seedCrypto("BTC")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy stock: %v", err)
	}
	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "BTC", models.AssetCrypto, models.ActionBuy, 64000); err != nil {
		t.Fatalf("buy crypto: %v", err)
	}

	page, err := e.orders.ListOrders(context.Background(), user.ID.Hex(), services.ListOrdersInput{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}

	if len(page.Orders.Stock) != 1 || len(page.Orders.Crypto) != 1 {
		t.Fatalf("groups = %d stock / %d crypto, want 1/1", len(page.Orders.Stock), len(page.Orders.Crypto))
	}
	if page.Orders.Stock[0].PortfolioName != "Main" {
		t.Errorf("portfolio_name = %q, want Main", page.Orders.Stock[0].PortfolioName)
	}
}

func TestListOrdersOmitsEmptyGroupKey(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedCrypto("BTC")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "BTC", models.AssetCrypto, models.ActionBuy, 64000); err != nil {
		t.Fatalf("buy crypto: %v", err)
	}

	page, err := e.orders.ListOrders(context.Background(), user.ID.Hex(), services.ListOrdersInput{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}

	body, err := json.Marshal(page.Orders)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"crypto"`) {
		t.Errorf("crypto key missing from %s", body)
	}
	if strings.Contains(string(body), `"stock"`) {
		t.Errorf("empty stock group should omit its key, got %s", body)
	}
	if strings.Contains(string(body), `"portfolio_id"`) {
		t.Errorf("portfolio_id should be hidden from order views, got %s", body)
	}
	if !strings.Contains(string(body), `"portfolio_name":"Main"`) {
		t.Errorf("portfolio_name missing from %s", body)
	}
}

func TestListOrdersPagination(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	for i := 1; i <= 45; i++ {
		if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, float64(i)); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
	}

	page, err := e.orders.ListOrders(context.Background(), user.ID.Hex(), services.ListOrdersInput{Page: 2, Limit: 20})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}

	if page.Total != 45 {
		t.Errorf("total = %d, want 45", page.Total)
	}
	if page.TotalPages != 3 {
		t.Errorf("totalPages = %d, want 3", page.TotalPages)
	}
	if len(page.Orders.Stock) != 20 {
		t.Fatalf("page size = %d, want 20", len(page.Orders.Stock))
	}
	// Sorted by order_price asc, page 2 covers prices 21..40.
	if first := page.Orders.Stock[0].OrderPrice; first != 21 {
		t.Errorf("first price = %v, want 21", first)
	}
	if last := page.Orders.Stock[19].OrderPrice; last != 40 {
		t.Errorf("last price = %v, want 40", last)
	}
}

func TestListOrdersFilters(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionSell, 41.2); err != nil {
		t.Fatalf("sell: %v", err)
	}

	page, err := e.orders.ListOrders(context.Background(), user.ID.Hex(), services.ListOrdersInput{
		Action: models.ActionSell,
		Page:   1,
		Limit:  20,
	})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Orders.Stock) != 1 || page.Orders.Stock[0].Action != models.ActionSell {
		t.Errorf("action filter returned %+v", page.Orders.Stock)
	}
}

func TestListOrdersScopedToUser(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser("ana@example.com")
	other := e.seedUser("beto@example.com")
	portfolio := e.seedPortfolio(owner.ID.Hex(), "Main")
	e.seedStock("PETR4")

	if _, err := e.placeOrder(portfolio.ID.Hex(), owner.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy: %v", err)
	}

	_, err := e.orders.ListOrders(context.Background(), other.ID.Hex(), services.ListOrdersInput{Page: 1, Limit: 20})
	wantErr(t, err, apperr.KindNotFound, "No orders found with the provided filters")
}

func TestListOrdersNoMatches(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")

	_, err := e.orders.ListOrders(context.Background(), user.ID.Hex(), services.ListOrdersInput{Page: 1, Limit: 20})
	wantErr(t, err, apperr.KindNotFound, "No orders found with the provided filters")
}

func TestDeleteOrder(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")

	order, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	if err := e.orders.DeleteOrder(context.Background(), order.ID.Hex(), user.ID.Hex()); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if e.mem.OrderCount() != 0 {
		t.Errorf("stored orders = %d, want 0", e.mem.OrderCount())
	}

	err = e.orders.DeleteOrder(context.Background(), order.ID.Hex(), user.ID.Hex())
	wantErr(t, err, apperr.KindNotFound, "Order not found")
}

func TestDeleteOrderOfAnotherUser(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser("ana@example.com")
	intruder := e.seedUser("beto@example.com")
	portfolio := e.seedPortfolio(owner.ID.Hex(), "Main")
	e.seedStock("PETR4")

	order, err := e.placeOrder(portfolio.ID.Hex(), owner.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	// A foreign order is indistinguishable from a missing one.
	err = e.orders.DeleteOrder(context.Background(), order.ID.Hex(), intruder.ID.Hex())
	wantErr(t, err, apperr.KindNotFound, "Order not found")

	if e.mem.OrderCount() != 1 {
		t.Errorf("stored orders = %d, want 1", e.mem.OrderCount())
	}
}

func TestListOrdersFiltersByTickerAcrossColumns(t *testing.T) {
	e := newEnv(t)
	user := e.seedUser("ana@example.com")
	portfolio := e.seedPortfolio(user.ID.Hex(), "Main")
	e.seedStock("PETR4")
	e.seedCrypto("BTC")

	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "PETR4", models.AssetStock, models.ActionBuy, 38.5); err != nil {
		t.Fatalf("buy stock: %v", err)
	}
	if _, err := e.placeOrder(portfolio.ID.Hex(), user.ID.Hex(), "BTC", models.AssetCrypto, models.ActionBuy, 64000); err != nil {
		t.Fatalf("buy crypto: %v", err)
	}

	page, err := e.orders.ListOrders(context.Background(), user.ID.Hex(), services.ListOrdersInput{
		Ticker: "BTC",
		Page:   1,
		Limit:  20,
	})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Orders.Crypto) != 1 || len(page.Orders.Stock) != 0 {
		t.Errorf("ticker filter returned %d stock / %d crypto, want 0/1", len(page.Orders.Stock), len(page.Orders.Crypto))
	}
}
