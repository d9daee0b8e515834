package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hisui-backend/internal/models"
)

// Memory backs every store with in-process slices guarded by one mutex. It is
// the test double for the Mongo stores and mirrors their query semantics,
// including the transactional rollback of order creation.
type Memory struct {
	mu         sync.Mutex
	users      []models.User
	portfolios []models.Portfolio
	stocks     []models.Stock
	cryptos    []models.Crypto
	orders     []models.Order
	news       []models.News
}

func NewMemory() (*Memory, *Stores) {
	m := &Memory{}
	return m, &Stores{
		Users:      &memUsers{m},
		Portfolios: &memPortfolios{m},
		Stocks:     &memStocks{m},
		Cryptos:    &memCryptos{m},
		Orders:     &memOrders{m},
		News:       &memNews{m},
	}
}

// SeedNews inserts a news document directly; the service has no write path
// for news (ingestion happens out of process).
func (m *Memory) SeedNews(news models.News) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if news.ID.IsZero() {
		news.ID = primitive.NewObjectID()
	}
	m.news = append(m.news, news)
}

// OrderCount reports the number of stored orders, for atomicity assertions.
func (m *Memory) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func paginate[T any](items []T, page Page) []T {
	skip := page.Skip()
	if skip >= len(items) {
		return nil
	}
	end := skip + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

type memUsers struct{ m *Memory }

func (s *memUsers) Insert(_ context.Context, user *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.m.users = append(s.m.users, *user)
	return nil
}

func (s *memUsers) find(pred func(*models.User) bool) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.users {
		if pred(&s.m.users[i]) {
			u := s.m.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUsers) ByID(_ context.Context, id string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID.Hex() == id })
}

func (s *memUsers) ByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s *memUsers) ByVerificationToken(_ context.Context, token string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.VerificationToken == token })
}

func (s *memUsers) Update(_ context.Context, user *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.users {
		if s.m.users[i].ID == user.ID {
			s.m.users[i] = *user
			return nil
		}
	}
	return ErrNotFound
}

func (s *memUsers) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.users {
		if s.m.users[i].ID.Hex() == id {
			s.m.users = append(s.m.users[:i], s.m.users[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memUsers) List(_ context.Context) ([]models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	users := append([]models.User(nil), s.m.users...)
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type memPortfolios struct{ m *Memory }

func (s *memPortfolios) Insert(_ context.Context, portfolio *models.Portfolio) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if portfolio.ID.IsZero() {
		portfolio.ID = primitive.NewObjectID()
	}
	s.m.portfolios = append(s.m.portfolios, *portfolio)
	return nil
}

func (s *memPortfolios) ByID(_ context.Context, id string) (*models.Portfolio, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.portfolios {
		if s.m.portfolios[i].ID.Hex() == id {
			p := s.m.portfolios[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memPortfolios) Update(_ context.Context, portfolio *models.Portfolio) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.portfolios {
		if s.m.portfolios[i].ID == portfolio.ID {
			s.m.portfolios[i] = *portfolio
			return nil
		}
	}
	return ErrNotFound
}

func (s *memPortfolios) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.portfolios {
		if s.m.portfolios[i].ID.Hex() == id {
			s.m.portfolios = append(s.m.portfolios[:i], s.m.portfolios[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memPortfolios) ListByOwner(_ context.Context, userID, name string) ([]models.Portfolio, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var portfolios []models.Portfolio
	for _, p := range s.m.portfolios {
		if p.UserID != userID {
			continue
		}
		if name != "" && !containsFold(p.Name, name) {
			continue
		}
		portfolios = append(portfolios, p)
	}
	sort.Slice(portfolios, func(i, j int) bool { return portfolios[i].Name < portfolios[j].Name })
	return portfolios, nil
}

func (s *memPortfolios) NamesByIDs(_ context.Context, ids []string) (map[string]string, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	names := make(map[string]string)
	for _, p := range s.m.portfolios {
		if wanted[p.ID.Hex()] {
			names[p.ID.Hex()] = p.Name
		}
	}
	return names, nil
}

type memStocks struct{ m *Memory }

func (s *memStocks) Insert(_ context.Context, stock *models.Stock) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if stock.ID.IsZero() {
		stock.ID = primitive.NewObjectID()
	}
	s.m.stocks = append(s.m.stocks, *stock)
	return nil
}

func (s *memStocks) ByID(_ context.Context, id string) (*models.Stock, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.stocks {
		if s.m.stocks[i].ID.Hex() == id {
			st := s.m.stocks[i]
			return &st, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStocks) ByTicker(_ context.Context, ticker string) (*models.Stock, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.stocks {
		if s.m.stocks[i].Ticker == ticker {
			st := s.m.stocks[i]
			return &st, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStocks) TickerInUse(_ context.Context, ticker, excludeID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, st := range s.m.stocks {
		if st.Ticker == ticker && st.ID.Hex() != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStocks) Update(_ context.Context, stock *models.Stock) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.stocks {
		if s.m.stocks[i].ID == stock.ID {
			s.m.stocks[i] = *stock
			return nil
		}
	}
	return ErrNotFound
}

func (s *memStocks) Search(_ context.Context, filter StockFilter, page Page) ([]models.Stock, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []models.Stock
	for _, st := range s.m.stocks {
		if filter.Name != "" && !containsFold(st.Name, filter.Name) {
			continue
		}
		if filter.Ticker != "" && !strings.Contains(st.Ticker, filter.Ticker) {
			continue
		}
		if filter.Type != "" && !containsFold(st.Type, filter.Type) {
			continue
		}
		if filter.Sector != "" && !containsFold(st.Sector, filter.Sector) {
			continue
		}
		if filter.CompanyName != "" && !containsFold(st.CompanyName, filter.CompanyName) {
			continue
		}
		if filter.Country != "" && !containsFold(st.Country, filter.Country) {
			continue
		}
		if filter.Exchange != "" && !containsFold(st.Exchange, filter.Exchange) {
			continue
		}
		matched = append(matched, st)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, page), int64(len(matched)), nil
}

type memCryptos struct{ m *Memory }

func (s *memCryptos) Insert(_ context.Context, crypto *models.Crypto) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if crypto.ID.IsZero() {
		crypto.ID = primitive.NewObjectID()
	}
	s.m.cryptos = append(s.m.cryptos, *crypto)
	return nil
}

func (s *memCryptos) ByID(_ context.Context, id string) (*models.Crypto, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.cryptos {
		if s.m.cryptos[i].ID.Hex() == id {
			c := s.m.cryptos[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memCryptos) ByTicker(_ context.Context, ticker string) (*models.Crypto, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.cryptos {
		if s.m.cryptos[i].Ticker == ticker {
			c := s.m.cryptos[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memCryptos) TickerInUse(_ context.Context, ticker, excludeID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.cryptos {
		if c.Ticker == ticker && c.ID.Hex() != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memCryptos) Update(_ context.Context, crypto *models.Crypto) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.cryptos {
		if s.m.cryptos[i].ID == crypto.ID {
			s.m.cryptos[i] = *crypto
			return nil
		}
	}
	return ErrNotFound
}

func (s *memCryptos) Search(_ context.Context, filter CryptoFilter, page Page) ([]models.Crypto, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []models.Crypto
	for _, c := range s.m.cryptos {
		if filter.Name != "" && !containsFold(c.Name, filter.Name) {
			continue
		}
		if filter.Ticker != "" && !strings.Contains(c.Ticker, filter.Ticker) {
			continue
		}
		if filter.Blockchain != "" && !containsFold(c.Blockchain, filter.Blockchain) {
			continue
		}
		if filter.Protocol != "" && !containsFold(c.Protocol, filter.Protocol) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, page), int64(len(matched)), nil
}

type memOrders struct{ m *Memory }

// InTransaction serializes order writes under the store mutex and restores
// the previous order slice when fn fails, so a failed inventory check leaves
// zero new rows.
func (s *memOrders) InTransaction(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	snapshot := append([]models.Order(nil), s.m.orders...)
	if err := fn(ctx, &memOrderTx{m: s.m}); err != nil {
		s.m.orders = snapshot
		return err
	}
	return nil
}

// memOrderTx operates on the already-locked Memory.
type memOrderTx struct{ m *Memory }

func (t *memOrderTx) HasBuyOrder(_ context.Context, portfolioID string, assetType models.AssetType, ticker string) (bool, error) {
	for _, o := range t.m.orders {
		if o.PortfolioID == portfolioID && o.AssetType == assetType && o.Action == models.ActionBuy && o.Ticker() == ticker {
			return true, nil
		}
	}
	return false, nil
}

func (t *memOrderTx) Insert(_ context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	t.m.orders = append(t.m.orders, *order)
	return nil
}

func (s *memOrders) ByIDAndUser(_ context.Context, orderID, userID string) (*models.Order, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.orders {
		if s.m.orders[i].ID.Hex() == orderID && s.m.orders[i].UserID == userID {
			o := s.m.orders[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memOrders) Delete(_ context.Context, orderID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.orders {
		if s.m.orders[i].ID.Hex() == orderID {
			s.m.orders = append(s.m.orders[:i], s.m.orders[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memOrders) List(_ context.Context, filter OrderFilter, page Page) ([]models.Order, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []models.Order
	for _, o := range s.m.orders {
		if o.UserID != filter.UserID {
			continue
		}
		if filter.Ticker != "" && !containsFold(o.StockTicker, filter.Ticker) && !containsFold(o.CryptoTicker, filter.Ticker) {
			continue
		}
		if filter.AssetType != "" && o.AssetType != filter.AssetType {
			continue
		}
		if filter.Action != "" && o.Action != filter.Action {
			continue
		}
		if filter.OrderPrice != nil && o.OrderPrice != *filter.OrderPrice {
			continue
		}
		if filter.OrderCurrency != "" && !containsFold(o.OrderCurrency, filter.OrderCurrency) {
			continue
		}
		if filter.Amount != nil && o.Amount != *filter.Amount {
			continue
		}
		if filter.PortfolioID != "" && o.PortfolioID != filter.PortfolioID {
			continue
		}
		matched = append(matched, o)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].OrderPrice < matched[j].OrderPrice })
	return paginate(matched, page), int64(len(matched)), nil
}

func (s *memOrders) DistinctTickers(_ context.Context, portfolioID string, assetType models.AssetType) ([]string, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	seen := make(map[string]bool)
	var tickers []string
	for _, o := range s.m.orders {
		if o.PortfolioID != portfolioID || o.AssetType != assetType {
			continue
		}
		t := o.Ticker()
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	return tickers, nil
}

type memNews struct{ m *Memory }

func (s *memNews) ByID(_ context.Context, id string) (*models.News, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.news {
		if s.m.news[i].ID.Hex() == id {
			n := s.m.news[i]
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memNews) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i := range s.m.news {
		if s.m.news[i].ID.Hex() == id {
			s.m.news = append(s.m.news[:i], s.m.news[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memNews) Search(_ context.Context, filter NewsFilter, page Page) ([]models.News, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []models.News
	for _, n := range s.m.news {
		if filter.Title != "" && !containsFold(n.Title, filter.Title) {
			continue
		}
		if filter.Author != "" && !containsFold(n.Author, filter.Author) {
			continue
		}
		if filter.PublisherName != "" && !containsFold(n.PublisherName, filter.PublisherName) {
			continue
		}
		if filter.PublishedAt != nil && !n.PublishedAt.Equal(*filter.PublishedAt) {
			continue
		}
		if filter.PublishedAt == nil {
			if filter.PublishedGTE != nil && n.PublishedAt.Before(*filter.PublishedGTE) {
				continue
			}
			if filter.PublishedLTE != nil && n.PublishedAt.After(*filter.PublishedLTE) {
				continue
			}
		}
		matched = append(matched, n)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if filter.SortAsc {
			return matched[i].PublishedAt.Before(matched[j].PublishedAt)
		}
		return matched[i].PublishedAt.After(matched[j].PublishedAt)
	})
	return paginate(matched, page), int64(len(matched)), nil
}
