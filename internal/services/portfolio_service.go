package services

import (
	"context"
	"errors"
	"time"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/store"
)

type PortfolioService struct {
	portfolios store.PortfolioStore
	orders     store.OrderStore
	stocks     store.StockStore
	cryptos    store.CryptoStore
}

func NewPortfolioService(stores *store.Stores) *PortfolioService {
	return &PortfolioService{
		portfolios: stores.Portfolios,
		orders:     stores.Orders,
		stocks:     stores.Stocks,
		cryptos:    stores.Cryptos,
	}
}

// CheckOwnership is the single ownership gate reused by every mutating or
// narrow-viewing operation on a portfolio. The verb ("modify", "view",
// "delete") only shapes the Forbidden message.
func (s *PortfolioService) CheckOwnership(ctx context.Context, portfolioID, userID, verb string) (*models.Portfolio, error) {
	portfolio, err := s.portfolios.ByID(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("The portfolio doesn't exists")
		}
		return nil, err
	}
	if portfolio.UserID != userID {
		return nil, apperr.Forbidden("You are not allowed to %s this portfolio", verb)
	}
	return portfolio, nil
}

func (s *PortfolioService) Create(ctx context.Context, userID, name, description string) (*models.Portfolio, error) {
	now := time.Now()
	portfolio := &models.Portfolio{
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.portfolios.Insert(ctx, portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

func (s *PortfolioService) List(ctx context.Context, userID, name string) ([]models.Portfolio, error) {
	portfolios, err := s.portfolios.ListByOwner(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		return nil, apperr.NotFound("You don't have a portfolio")
	}
	return portfolios, nil
}

func (s *PortfolioService) Patch(ctx context.Context, portfolioID, userID string, name, description *string) error {
	portfolio, err := s.CheckOwnership(ctx, portfolioID, userID, "modify")
	if err != nil {
		return err
	}
	if name != nil {
		portfolio.Name = *name
	}
	if description != nil {
		portfolio.Description = *description
	}
	return s.portfolios.Update(ctx, portfolio)
}

func (s *PortfolioService) Delete(ctx context.Context, portfolioID, userID string) error {
	portfolio, err := s.portfolios.ByID(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Portfolio not found")
		}
		return err
	}
	if portfolio.UserID != userID {
		return apperr.Forbidden("You are not allowed to delete this portfolio")
	}
	// Contained orders are left to the storage layer; no cascade here.
	return s.portfolios.Delete(ctx, portfolioID)
}

type PortfolioAssets struct {
	Stocks  []models.Stock  `json:"stocks"`
	Cryptos []models.Crypto `json:"cryptos"`
}

// ViewAssets lists the distinct catalog entries the portfolio has orders for.
func (s *PortfolioService) ViewAssets(ctx context.Context, portfolioID, userID string) (*PortfolioAssets, error) {
	portfolio, err := s.CheckOwnership(ctx, portfolioID, userID, "view")
	if err != nil {
		return nil, err
	}

	assets := &PortfolioAssets{
		Stocks:  []models.Stock{},
		Cryptos: []models.Crypto{},
	}

	stockTickers, err := s.orders.DistinctTickers(ctx, portfolio.ID.Hex(), models.AssetStock)
	if err != nil {
		return nil, err
	}
	for _, ticker := range stockTickers {
		stock, err := s.stocks.ByTicker(ctx, ticker)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		assets.Stocks = append(assets.Stocks, *stock)
	}

	cryptoTickers, err := s.orders.DistinctTickers(ctx, portfolio.ID.Hex(), models.AssetCrypto)
	if err != nil {
		return nil, err
	}
	for _, ticker := range cryptoTickers {
		crypto, err := s.cryptos.ByTicker(ctx, ticker)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		assets.Cryptos = append(assets.Cryptos, *crypto)
	}

	return assets, nil
}
