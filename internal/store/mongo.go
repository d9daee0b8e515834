package store

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hisui-backend/internal/models"
)

// NewMongo wires every store to collections of the given database. The
// client is needed alongside the database because order creation opens a
// session-scoped transaction.
func NewMongo(client *mongo.Client, db *mongo.Database) *Stores {
	return &Stores{
		Users:      &mongoUsers{c: db.Collection("users")},
		Portfolios: &mongoPortfolios{c: db.Collection("portfolios")},
		Stocks:     &mongoStocks{c: db.Collection("stocks")},
		Cryptos:    &mongoCryptos{c: db.Collection("cryptos")},
		Orders:     &mongoOrders{c: db.Collection("orders"), client: client},
		News:       &mongoNews{c: db.Collection("news")},
	}
}

// contains builds a substring-match regex; opts "i" makes it insensitive.
func contains(value, opts string) bson.M {
	return bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: opts}}
}

func oidFromHex(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A malformed id can never match a stored document.
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func asNotFound(err error) error {
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	return err
}

type mongoUsers struct {
	c *mongo.Collection
}

func (s *mongoUsers) Insert(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, user)
	return err
}

func (s *mongoUsers) ByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := oidFromHex(id)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return nil, asNotFound(err)
	}
	return &user, nil
}

func (s *mongoUsers) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, asNotFound(err)
	}
	return &user, nil
}

func (s *mongoUsers) ByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := s.c.FindOne(ctx, bson.M{"verification_token": token}).Decode(&user); err != nil {
		return nil, asNotFound(err)
	}
	return &user, nil
}

func (s *mongoUsers) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	return err
}

func (s *mongoUsers) Delete(ctx context.Context, id string) error {
	oid, err := oidFromHex(id)
	if err != nil {
		return err
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoUsers) List(ctx context.Context) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

type mongoPortfolios struct {
	c *mongo.Collection
}

func (s *mongoPortfolios) Insert(ctx context.Context, portfolio *models.Portfolio) error {
	if portfolio.ID.IsZero() {
		portfolio.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, portfolio)
	return err
}

func (s *mongoPortfolios) ByID(ctx context.Context, id string) (*models.Portfolio, error) {
	oid, err := oidFromHex(id)
	if err != nil {
		return nil, err
	}
	var portfolio models.Portfolio
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&portfolio); err != nil {
		return nil, asNotFound(err)
	}
	return &portfolio, nil
}

func (s *mongoPortfolios) Update(ctx context.Context, portfolio *models.Portfolio) error {
	portfolio.UpdatedAt = time.Now()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": portfolio.ID}, portfolio)
	return err
}

func (s *mongoPortfolios) Delete(ctx context.Context, id string) error {
	oid, err := oidFromHex(id)
	if err != nil {
		return err
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoPortfolios) ListByOwner(ctx context.Context, userID, name string) ([]models.Portfolio, error) {
	query := bson.M{"user_id": userID}
	if name != "" {
		query["name"] = contains(name, "i")
	}
	cur, err := s.c.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var portfolios []models.Portfolio
	if err := cur.All(ctx, &portfolios); err != nil {
		return nil, err
	}
	return portfolios, nil
}

func (s *mongoPortfolios) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var portfolios []models.Portfolio
	if err := cur.All(ctx, &portfolios); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(portfolios))
	for _, p := range portfolios {
		names[p.ID.Hex()] = p.Name
	}
	return names, nil
}

type mongoStocks struct {
	c *mongo.Collection
}

func (s *mongoStocks) Insert(ctx context.Context, stock *models.Stock) error {
	if stock.ID.IsZero() {
		stock.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, stock)
	return err
}

func (s *mongoStocks) ByID(ctx context.Context, id string) (*models.Stock, error) {
	oid, err := oidFromHex(id)
	if err != nil {
		return nil, err
	}
	var stock models.Stock
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&stock); err != nil {
		return nil, asNotFound(err)
	}
	return &stock, nil
}

func (s *mongoStocks) ByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	var stock models.Stock
	if err := s.c.FindOne(ctx, bson.M{"ticker": ticker}).Decode(&stock); err != nil {
		return nil, asNotFound(err)
	}
	return &stock, nil
}

func (s *mongoStocks) TickerInUse(ctx context.Context, ticker, excludeID string) (bool, error) {
	query := bson.M{"ticker": ticker}
	if excludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
			query["_id"] = bson.M{"$ne": oid}
		}
	}
	n, err := s.c.CountDocuments(ctx, query)
	return n > 0, err
}

func (s *mongoStocks) Update(ctx context.Context, stock *models.Stock) error {
	stock.UpdatedAt = time.Now()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": stock.ID}, stock)
	return err
}

func (s *mongoStocks) Search(ctx context.Context, filter StockFilter, page Page) ([]models.Stock, int64, error) {
	query := bson.M{}
	if filter.Name != "" {
		query["name"] = contains(filter.Name, "i")
	}
	if filter.Ticker != "" {
		query["ticker"] = contains(filter.Ticker, "")
	}
	if filter.Type != "" {
		query["type"] = contains(filter.Type, "i")
	}
	if filter.Sector != "" {
		query["sector"] = contains(filter.Sector, "i")
	}
	if filter.CompanyName != "" {
		query["company_name"] = contains(filter.CompanyName, "i")
	}
	if filter.Country != "" {
		query["country"] = contains(filter.Country, "i")
	}
	if filter.Exchange != "" {
		query["exchange"] = contains(filter.Exchange, "i")
	}

	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64(page.Skip())).
		SetLimit(int64(page.Size)).
		SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var stocks []models.Stock
	if err := cur.All(ctx, &stocks); err != nil {
		return nil, 0, err
	}
	return stocks, total, nil
}

type mongoCryptos struct {
	c *mongo.Collection
}

func (s *mongoCryptos) Insert(ctx context.Context, crypto *models.Crypto) error {
	if crypto.ID.IsZero() {
		crypto.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, crypto)
	return err
}

func (s *mongoCryptos) ByID(ctx context.Context, id string) (*models.Crypto, error) {
	oid, err := oidFromHex(id)
	if err != nil {
		return nil, err
	}
	var crypto models.Crypto
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&crypto); err != nil {
		return nil, asNotFound(err)
	}
	return &crypto, nil
}

func (s *mongoCryptos) ByTicker(ctx context.Context, ticker string) (*models.Crypto, error) {
	var crypto models.Crypto
	if err := s.c.FindOne(ctx, bson.M{"ticker": ticker}).Decode(&crypto); err != nil {
		return nil, asNotFound(err)
	}
	return &crypto, nil
}

func (s *mongoCryptos) TickerInUse(ctx context.Context, ticker, excludeID string) (bool, error) {
	query := bson.M{"ticker": ticker}
	if excludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
			query["_id"] = bson.M{"$ne": oid}
		}
	}
	n, err := s.c.CountDocuments(ctx, query)
	return n > 0, err
}

func (s *mongoCryptos) Update(ctx context.Context, crypto *models.Crypto) error {
	crypto.UpdatedAt = time.Now()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": crypto.ID}, crypto)
	return err
}

func (s *mongoCryptos) Search(ctx context.Context, filter CryptoFilter, page Page) ([]models.Crypto, int64, error) {
	query := bson.M{}
	if filter.Name != "" {
		query["name"] = contains(filter.Name, "i")
	}
	if filter.Ticker != "" {
		query["ticker"] = contains(filter.Ticker, "")
	}
	if filter.Blockchain != "" {
		query["blockchain"] = contains(filter.Blockchain, "i")
	}
	if filter.Protocol != "" {
		query["protocol"] = contains(filter.Protocol, "i")
	}

	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64(page.Skip())).
		SetLimit(int64(page.Size)).
		SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var cryptos []models.Crypto
	if err := cur.All(ctx, &cryptos); err != nil {
		return nil, 0, err
	}
	return cryptos, total, nil
}

type mongoOrders struct {
	c      *mongo.Collection
	client *mongo.Client
}

func tickerField(assetType models.AssetType) string {
	if assetType == models.AssetCrypto {
		return "crypto_ticker"
	}
	return "stock_ticker"
}

// InTransaction runs fn inside a causally-consistent session transaction so
// the SELL inventory check and the insert observe the same snapshot. Two
// concurrent SELLs racing on the same BUY predicate cannot both commit a
// conflicting write.
func (s *mongoOrders) InTransaction(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

func (s *mongoOrders) HasBuyOrder(ctx context.Context, portfolioID string, assetType models.AssetType, ticker string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"portfolio_id":         portfolioID,
		"asset_type":           assetType,
		"action":               models.ActionBuy,
		tickerField(assetType): ticker,
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *mongoOrders) Insert(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, order)
	return err
}

func (s *mongoOrders) ByIDAndUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	oid, err := oidFromHex(orderID)
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := s.c.FindOne(ctx, bson.M{"_id": oid, "user_id": userID}).Decode(&order); err != nil {
		return nil, asNotFound(err)
	}
	return &order, nil
}

func (s *mongoOrders) Delete(ctx context.Context, orderID string) error {
	oid, err := oidFromHex(orderID)
	if err != nil {
		return err
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoOrders) List(ctx context.Context, filter OrderFilter, page Page) ([]models.Order, int64, error) {
	query := bson.M{"user_id": filter.UserID}
	if filter.Ticker != "" {
		query["$or"] = []bson.M{
			{"stock_ticker": contains(filter.Ticker, "i")},
			{"crypto_ticker": contains(filter.Ticker, "i")},
		}
	}
	if filter.AssetType != "" {
		query["asset_type"] = filter.AssetType
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}
	if filter.OrderPrice != nil {
		query["order_price"] = *filter.OrderPrice
	}
	if filter.OrderCurrency != "" {
		query["order_currency"] = contains(filter.OrderCurrency, "i")
	}
	if filter.Amount != nil {
		query["amount"] = *filter.Amount
	}
	if filter.PortfolioID != "" {
		query["portfolio_id"] = filter.PortfolioID
	}

	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64(page.Skip())).
		SetLimit(int64(page.Size)).
		SetSort(bson.D{{Key: "order_price", Value: 1}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var orders []models.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *mongoOrders) DistinctTickers(ctx context.Context, portfolioID string, assetType models.AssetType) ([]string, error) {
	field := tickerField(assetType)
	values, err := s.c.Distinct(ctx, field, bson.M{
		"portfolio_id": portfolioID,
		"asset_type":   assetType,
		field:          bson.M{"$nin": bson.A{nil, ""}},
	})
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(values))
	for _, v := range values {
		if t, ok := v.(string); ok {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}

type mongoNews struct {
	c *mongo.Collection
}

func (s *mongoNews) ByID(ctx context.Context, id string) (*models.News, error) {
	oid, err := oidFromHex(id)
	if err != nil {
		return nil, err
	}
	var news models.News
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&news); err != nil {
		return nil, asNotFound(err)
	}
	return &news, nil
}

func (s *mongoNews) Delete(ctx context.Context, id string) error {
	oid, err := oidFromHex(id)
	if err != nil {
		return err
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoNews) Search(ctx context.Context, filter NewsFilter, page Page) ([]models.News, int64, error) {
	query := bson.M{}
	if filter.Title != "" {
		query["title"] = contains(filter.Title, "i")
	}
	if filter.Author != "" {
		query["author"] = contains(filter.Author, "i")
	}
	if filter.PublisherName != "" {
		query["publisher_name"] = contains(filter.PublisherName, "i")
	}
	if filter.PublishedAt != nil {
		query["published_at"] = *filter.PublishedAt
	} else if filter.PublishedGTE != nil || filter.PublishedLTE != nil {
		rangeQuery := bson.M{}
		if filter.PublishedGTE != nil {
			rangeQuery["$gte"] = *filter.PublishedGTE
		}
		if filter.PublishedLTE != nil {
			rangeQuery["$lte"] = *filter.PublishedLTE
		}
		query["published_at"] = rangeQuery
	}

	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	sortDir := -1
	if filter.SortAsc {
		sortDir = 1
	}
	opts := options.Find().
		SetSkip(int64(page.Skip())).
		SetLimit(int64(page.Size)).
		SetSort(bson.D{{Key: "published_at", Value: sortDir}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var news []models.News
	if err := cur.All(ctx, &news); err != nil {
		return nil, 0, err
	}
	return news, total, nil
}
