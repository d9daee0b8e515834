package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssetType tags which catalog a ticker belongs to. The two catalogs are
// disjoint namespaces, so a ticker lookup is always qualified by type.
type AssetType string

const (
	AssetStock  AssetType = "STOCK"
	AssetCrypto AssetType = "CRYPTO"
)

func (t AssetType) Valid() bool {
	return t == AssetStock || t == AssetCrypto
}

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

type Stock struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Ticker      string             `bson:"ticker" json:"ticker"`
	Type        string             `bson:"type,omitempty" json:"type,omitempty"`
	Sector      string             `bson:"sector,omitempty" json:"sector,omitempty"`
	CompanyName string             `bson:"company_name,omitempty" json:"company_name,omitempty"`
	Country     string             `bson:"country,omitempty" json:"country,omitempty"`
	Exchange    string             `bson:"exchange,omitempty" json:"exchange,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

type Crypto struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Ticker     string             `bson:"ticker" json:"ticker"`
	Blockchain string             `bson:"blockchain,omitempty" json:"blockchain,omitempty"`
	Protocol   string             `bson:"protocol,omitempty" json:"protocol,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

type Portfolio struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Order records a single buy or sell event inside a portfolio. Exactly one of
// StockTicker/CryptoTicker is populated, matching AssetType.
type Order struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PortfolioID        string             `bson:"portfolio_id" json:"portfolio_id"`
	UserID             string             `bson:"user_id" json:"user_id"`
	AssetType          AssetType          `bson:"asset_type" json:"asset_type"`
	StockTicker        string             `bson:"stock_ticker,omitempty" json:"stock_ticker,omitempty"`
	CryptoTicker       string             `bson:"crypto_ticker,omitempty" json:"crypto_ticker,omitempty"`
	Action             Action             `bson:"action" json:"action"`
	OrderPrice         float64            `bson:"order_price" json:"order_price"`
	OrderCurrency      string             `bson:"order_currency" json:"order_currency"`
	Amount             float64            `bson:"amount" json:"amount"`
	OrderExecutionDate time.Time          `bson:"order_execution_date" json:"order_execution_date"`
	Fees               *float64           `bson:"fees,omitempty" json:"fees,omitempty"`
	TaxAmount          *float64           `bson:"tax_amount,omitempty" json:"tax_amount,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// Ticker returns whichever ticker column is populated for the order's type.
func (o *Order) Ticker() string {
	if o.AssetType == AssetCrypto {
		return o.CryptoTicker
	}
	return o.StockTicker
}

type News struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PublisherName string             `bson:"publisher_name" json:"publisher_name"`
	PublisherURL  string             `bson:"publisher_url,omitempty" json:"publisher_url,omitempty"`
	Title         string             `bson:"title" json:"title"`
	Author        string             `bson:"author,omitempty" json:"author,omitempty"`
	PublishedAt   time.Time          `bson:"published_at" json:"published_at"`
	ArticleURL    string             `bson:"article_url,omitempty" json:"article_url,omitempty"`
	Tickers       []string           `bson:"tickers,omitempty" json:"tickers,omitempty"`
	AmpURL        string             `bson:"amp_url,omitempty" json:"amp_url,omitempty"`
	ImageURL      string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
