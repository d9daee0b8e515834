package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/store"
)

// CatalogService owns the two disjoint asset catalogs. Tickers are normalized
// to uppercase on the write paths here; lookups elsewhere are exact-match.
type CatalogService struct {
	stocks  store.StockStore
	cryptos store.CryptoStore
}

func NewCatalogService(stores *store.Stores) *CatalogService {
	return &CatalogService{
		stocks:  stores.Stocks,
		cryptos: stores.Cryptos,
	}
}

// AssertAssetExists fails when the catalog of the requested type has no entry
// for the ticker. An unknown asset type is a defensive check; upstream
// validation should have rejected it already.
func (s *CatalogService) AssertAssetExists(ctx context.Context, ticker string, assetType models.AssetType) error {
	switch assetType {
	case models.AssetStock:
		if _, err := s.stocks.ByTicker(ctx, ticker); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("The stock %s doesn't exist in the database", ticker)
			}
			return err
		}
	case models.AssetCrypto:
		if _, err := s.cryptos.ByTicker(ctx, ticker); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("The crypto %s doesn't exist in the database", ticker)
			}
			return err
		}
	default:
		return apperr.InvalidArgument("Invalid asset type: %s", assetType)
	}
	return nil
}

type CreateStockInput struct {
	Name        string
	Ticker      string
	Type        string
	Sector      string
	CompanyName string
	Country     string
	Exchange    string
}

func (s *CatalogService) CreateStock(ctx context.Context, in CreateStockInput) (*models.Stock, error) {
	ticker := strings.ToUpper(in.Ticker)
	inUse, err := s.stocks.TickerInUse(ctx, ticker, "")
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, apperr.InvalidState("The stock %s has been already registered", ticker)
	}

	now := time.Now()
	stock := &models.Stock{
		Name:        in.Name,
		Ticker:      ticker,
		Type:        in.Type,
		Sector:      in.Sector,
		CompanyName: in.CompanyName,
		Country:     in.Country,
		Exchange:    in.Exchange,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stocks.Insert(ctx, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

type PatchStockInput struct {
	Name        *string
	Ticker      *string
	Type        *string
	Sector      *string
	CompanyName *string
	Country     *string
	Exchange    *string
}

func (s *CatalogService) PatchStock(ctx context.Context, id string, in PatchStockInput) error {
	stock, err := s.stocks.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("The stock doesn't exists")
		}
		return err
	}

	if in.Ticker != nil {
		ticker := strings.ToUpper(*in.Ticker)
		inUse, err := s.stocks.TickerInUse(ctx, ticker, id)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.InvalidState("The new ticker: %s is already in use", ticker)
		}
		stock.Ticker = ticker
	}
	if in.Name != nil {
		stock.Name = *in.Name
	}
	if in.Type != nil {
		stock.Type = *in.Type
	}
	if in.Sector != nil {
		stock.Sector = *in.Sector
	}
	if in.CompanyName != nil {
		stock.CompanyName = *in.CompanyName
	}
	if in.Country != nil {
		stock.Country = *in.Country
	}
	if in.Exchange != nil {
		stock.Exchange = *in.Exchange
	}
	return s.stocks.Update(ctx, stock)
}

type StockPage struct {
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"totalPages"`
	Assets     []models.Stock `json:"assets"`
}

func (s *CatalogService) SearchStocks(ctx context.Context, filter store.StockFilter, page, limit int) (*StockPage, error) {
	stocks, total, err := s.stocks.Search(ctx, filter, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, apperr.NotFound("No stock found with the provided filters")
	}
	return &StockPage{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
		Assets:     stocks,
	}, nil
}

type CreateCryptoInput struct {
	Name       string
	Ticker     string
	Blockchain string
	Protocol   string
}

func (s *CatalogService) CreateCrypto(ctx context.Context, in CreateCryptoInput) (*models.Crypto, error) {
	ticker := strings.ToUpper(in.Ticker)
	inUse, err := s.cryptos.TickerInUse(ctx, ticker, "")
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, apperr.InvalidState("The crypto %s has been already registered", ticker)
	}

	now := time.Now()
	crypto := &models.Crypto{
		Name:       in.Name,
		Ticker:     ticker,
		Blockchain: in.Blockchain,
		Protocol:   in.Protocol,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.cryptos.Insert(ctx, crypto); err != nil {
		return nil, err
	}
	return crypto, nil
}

type PatchCryptoInput struct {
	Name       *string
	Ticker     *string
	Blockchain *string
	Protocol   *string
}

func (s *CatalogService) PatchCrypto(ctx context.Context, id string, in PatchCryptoInput) error {
	crypto, err := s.cryptos.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("The crypto doesn't exists")
		}
		return err
	}

	if in.Ticker != nil {
		ticker := strings.ToUpper(*in.Ticker)
		inUse, err := s.cryptos.TickerInUse(ctx, ticker, id)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.InvalidState("The new ticker: %s is already in use", ticker)
		}
		crypto.Ticker = ticker
	}
	if in.Name != nil {
		crypto.Name = *in.Name
	}
	if in.Blockchain != nil {
		crypto.Blockchain = *in.Blockchain
	}
	if in.Protocol != nil {
		crypto.Protocol = *in.Protocol
	}
	return s.cryptos.Update(ctx, crypto)
}

type CryptoPage struct {
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"totalPages"`
	Cryptos    []models.Crypto `json:"cryptos"`
}

func (s *CatalogService) SearchCryptos(ctx context.Context, filter store.CryptoFilter, page, limit int) (*CryptoPage, error) {
	cryptos, total, err := s.cryptos.Search(ctx, filter, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}
	if len(cryptos) == 0 {
		return nil, apperr.NotFound("No crypto found with the provided filters")
	}
	return &CryptoPage{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
		Cryptos:    cryptos,
	}, nil
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
