package services

import (
	"context"
	"errors"
	"log"
	"time"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/store"
)

// OrderNotifier delivers a confirmation for a committed order. Implementations
// are best-effort; the order service logs failures and moves on.
type OrderNotifier interface {
	SendOrderConfirmation(user *models.User, order *models.Order) error
}

// OrderPublisher pushes a committed order to the owner's live connections.
type OrderPublisher interface {
	PublishOrder(userID string, order *models.Order)
}

type OrderService struct {
	orders         store.OrderStore
	users          store.UserStore
	portfolioStore store.PortfolioStore
	portfolios     *PortfolioService
	catalog        *CatalogService
	notifier       OrderNotifier
	publisher      OrderPublisher
}

func NewOrderService(stores *store.Stores, portfolios *PortfolioService, catalog *CatalogService, notifier OrderNotifier, publisher OrderPublisher) *OrderService {
	return &OrderService{
		orders:         stores.Orders,
		users:          stores.Users,
		portfolioStore: stores.Portfolios,
		portfolios:     portfolios,
		catalog:        catalog,
		notifier:       notifier,
		publisher:      publisher,
	}
}

// CreateOrderInput is pre-validated by the handler: price and amount are
// positive, fees/tax when present are positive, and the currency is already
// uppercased.
type CreateOrderInput struct {
	PortfolioID        string
	UserID             string
	Ticker             string
	AssetType          models.AssetType
	Action             models.Action
	OrderPrice         float64
	OrderCurrency      string
	Amount             float64
	OrderExecutionDate time.Time
	Fees               *float64
	TaxAmount          *float64
}

// CreateOrder runs the ownership gate, the asset existence check, then the
// transactional inventory-check-plus-insert. A SELL commits only when a prior
// BUY for the same (portfolio, type, ticker) exists; the check does not net
// quantities. Confirmation delivery happens after the commit and never fails
// the call.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	portfolio, err := s.portfolios.CheckOwnership(ctx, in.PortfolioID, in.UserID, "modify")
	if err != nil {
		return nil, err
	}

	if err := s.catalog.AssertAssetExists(ctx, in.Ticker, in.AssetType); err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		PortfolioID:        portfolio.ID.Hex(),
		UserID:             in.UserID,
		AssetType:          in.AssetType,
		Action:             in.Action,
		OrderPrice:         in.OrderPrice,
		OrderCurrency:      in.OrderCurrency,
		Amount:             in.Amount,
		OrderExecutionDate: in.OrderExecutionDate,
		Fees:               in.Fees,
		TaxAmount:          in.TaxAmount,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.AssetType == models.AssetCrypto {
		order.CryptoTicker = in.Ticker
	} else {
		order.StockTicker = in.Ticker
	}

	err = s.orders.InTransaction(ctx, func(ctx context.Context, tx store.OrderTx) error {
		if in.Action == models.ActionSell {
			owned, err := tx.HasBuyOrder(ctx, order.PortfolioID, in.AssetType, in.Ticker)
			if err != nil {
				return err
			}
			if !owned {
				return apperr.InvalidState("You don't own %s in this portfolio to can be sell it", in.Ticker)
			}
		}
		return tx.Insert(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	go s.notifyOrderCreated(order)

	return order, nil
}

// notifyOrderCreated runs out-of-band after the commit. Missing email means a
// silent skip; delivery failures are logged and swallowed.
func (s *OrderService) notifyOrderCreated(order *models.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.publisher != nil {
		s.publisher.PublishOrder(order.UserID, order)
	}

	if s.notifier == nil {
		return
	}
	user, err := s.users.ByID(ctx, order.UserID)
	if err != nil {
		log.Printf("order %s: skipping confirmation, user lookup failed: %v", order.ID.Hex(), err)
		return
	}
	if user.Email == "" {
		return
	}
	if err := s.notifier.SendOrderConfirmation(user, order); err != nil {
		log.Printf("order %s: confirmation email failed: %v", order.ID.Hex(), err)
	}
}

type ListOrdersInput struct {
	Ticker        string
	AssetType     models.AssetType
	Action        models.Action
	OrderPrice    *float64
	OrderCurrency string
	Amount        *float64
	PortfolioID   string
	Page          int
	Limit         int
}

// OrderView is an order row denormalized with its portfolio's name; the raw
// portfolio foreign key is hidden from responses.
type OrderView struct {
	models.Order
	PortfolioID   string `json:"-"`
	PortfolioName string `json:"portfolio_name"`
}

// GroupedOrders splits rows by asset class. A class with no rows omits its
// key entirely rather than carrying an empty array; consumers check for key
// presence.
type GroupedOrders struct {
	Stock  []OrderView `json:"stock,omitempty"`
	Crypto []OrderView `json:"crypto,omitempty"`
}

type OrderPage struct {
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"totalPages"`
	Orders     GroupedOrders `json:"orders"`
}

// ListOrders returns the user's orders, filtered, paginated and grouped by
// asset class. Rows are sorted by order_price asc.
func (s *OrderService) ListOrders(ctx context.Context, userID string, in ListOrdersInput) (*OrderPage, error) {
	filter := store.OrderFilter{
		UserID:        userID,
		Ticker:        in.Ticker,
		AssetType:     in.AssetType,
		Action:        in.Action,
		OrderPrice:    in.OrderPrice,
		OrderCurrency: in.OrderCurrency,
		Amount:        in.Amount,
		PortfolioID:   in.PortfolioID,
	}

	orders, total, err := s.orders.List(ctx, filter, store.Page{Number: in.Page, Size: in.Limit})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("No orders found with the provided filters")
	}

	portfolioIDs := make([]string, 0, len(orders))
	seen := make(map[string]bool)
	for _, o := range orders {
		if !seen[o.PortfolioID] {
			seen[o.PortfolioID] = true
			portfolioIDs = append(portfolioIDs, o.PortfolioID)
		}
	}
	names, err := s.portfolioStore.NamesByIDs(ctx, portfolioIDs)
	if err != nil {
		return nil, err
	}

	var grouped GroupedOrders
	for _, o := range orders {
		view := OrderView{Order: o, PortfolioName: names[o.PortfolioID]}
		if o.AssetType == models.AssetCrypto {
			grouped.Crypto = append(grouped.Crypto, view)
		} else {
			grouped.Stock = append(grouped.Stock, view)
		}
	}

	return &OrderPage{
		Page:       in.Page,
		Limit:      in.Limit,
		Total:      total,
		TotalPages: totalPages(total, in.Limit),
		Orders:     grouped,
	}, nil
}

// DeleteOrder removes the user's order. Existence and ownership are folded
// into one lookup, so a foreign order reports the same NotFound as a missing
// one.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID, userID string) error {
	if _, err := s.orders.ByIDAndUser(ctx, orderID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Order not found")
		}
		return err
	}
	return s.orders.Delete(ctx, orderID)
}
