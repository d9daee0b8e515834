// Package store abstracts persistence behind per-entity interfaces so
// services receive an explicitly constructed handle instead of reaching for a
// process-wide client. Two implementations exist: MongoDB for production and
// an in-memory double for tests.
package store

import (
	"context"
	"errors"
	"time"

	"hisui-backend/internal/models"
)

// ErrNotFound is returned by lookups when no document matches.
var ErrNotFound = errors.New("store: not found")

type Page struct {
	Number int
	Size   int
}

func (p Page) Skip() int {
	return (p.Number - 1) * p.Size
}

// OrderFilter holds the optional predicates of the order listing endpoint.
// Zero values mean "not filtered"; set predicates are combined with AND.
type OrderFilter struct {
	UserID        string
	Ticker        string // case-insensitive substring, OR across both ticker columns
	AssetType     models.AssetType
	Action        models.Action
	OrderPrice    *float64
	OrderCurrency string // case-insensitive substring
	Amount        *float64
	PortfolioID   string
}

type StockFilter struct {
	Name        string
	Ticker      string // case-sensitive substring
	Type        string
	Sector      string
	CompanyName string
	Country     string
	Exchange    string
}

type CryptoFilter struct {
	Name       string
	Ticker     string // case-sensitive substring
	Blockchain string
	Protocol   string
}

type NewsFilter struct {
	Title         string
	Author        string
	PublisherName string
	PublishedAt   *time.Time
	PublishedGTE  *time.Time
	PublishedLTE  *time.Time
	SortAsc       bool // sort on published_at; default is newest first
}

type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	ByID(ctx context.Context, id string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.User, error) // sorted by username asc
}

type PortfolioStore interface {
	Insert(ctx context.Context, portfolio *models.Portfolio) error
	ByID(ctx context.Context, id string) (*models.Portfolio, error)
	Update(ctx context.Context, portfolio *models.Portfolio) error
	Delete(ctx context.Context, id string) error
	// ListByOwner returns the user's portfolios sorted by name asc, optionally
	// narrowed by a case-insensitive name substring.
	ListByOwner(ctx context.Context, userID, name string) ([]models.Portfolio, error)
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

type StockStore interface {
	Insert(ctx context.Context, stock *models.Stock) error
	ByID(ctx context.Context, id string) (*models.Stock, error)
	ByTicker(ctx context.Context, ticker string) (*models.Stock, error)
	TickerInUse(ctx context.Context, ticker, excludeID string) (bool, error)
	Update(ctx context.Context, stock *models.Stock) error
	Search(ctx context.Context, filter StockFilter, page Page) ([]models.Stock, int64, error)
}

type CryptoStore interface {
	Insert(ctx context.Context, crypto *models.Crypto) error
	ByID(ctx context.Context, id string) (*models.Crypto, error)
	ByTicker(ctx context.Context, ticker string) (*models.Crypto, error)
	TickerInUse(ctx context.Context, ticker, excludeID string) (bool, error)
	Update(ctx context.Context, crypto *models.Crypto) error
	Search(ctx context.Context, filter CryptoFilter, page Page) ([]models.Crypto, int64, error)
}

// OrderTx is the unit of work available inside an order transaction. The
// inventory check and the insert run against the same snapshot; either both
// take effect or neither does.
type OrderTx interface {
	HasBuyOrder(ctx context.Context, portfolioID string, assetType models.AssetType, ticker string) (bool, error)
	Insert(ctx context.Context, order *models.Order) error
}

type OrderStore interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error
	// ByIDAndUser folds existence and ownership into one lookup; a foreign
	// order is indistinguishable from a missing one.
	ByIDAndUser(ctx context.Context, orderID, userID string) (*models.Order, error)
	Delete(ctx context.Context, orderID string) error
	// List returns a page of matching orders sorted by order_price asc, plus
	// the total match count.
	List(ctx context.Context, filter OrderFilter, page Page) ([]models.Order, int64, error)
	// DistinctTickers returns the distinct populated tickers of the given type
	// across a portfolio's orders.
	DistinctTickers(ctx context.Context, portfolioID string, assetType models.AssetType) ([]string, error)
}

type NewsStore interface {
	ByID(ctx context.Context, id string) (*models.News, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter NewsFilter, page Page) ([]models.News, int64, error)
}

// Stores bundles every store behind one injectable handle.
type Stores struct {
	Users      UserStore
	Portfolios PortfolioStore
	Stocks     StockStore
	Cryptos    CryptoStore
	Orders     OrderStore
	News       NewsStore
}
