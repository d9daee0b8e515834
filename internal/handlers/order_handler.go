package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hisui-backend/internal/models"
	"hisui-backend/internal/services"
)

// executionDateLayouts accepted for order_execution_date.
var executionDateLayouts = []string{"2006/01/02 15:04", "2006/01/02"}

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type CreateOrderRequest struct {
	Ticker             string   `json:"ticker" binding:"required"`
	Type               string   `json:"type" binding:"required,oneof=STOCK CRYPTO"`
	Action             string   `json:"action" binding:"required,oneof=BUY SELL"`
	OrderPrice         float64  `json:"order_price" binding:"required,gt=0"`
	OrderCurrency      string   `json:"order_currency" binding:"required,min=1"`
	Amount             float64  `json:"amount" binding:"required,gt=0"`
	OrderExecutionDate string   `json:"order_execution_date" binding:"required"`
	Fees               *float64 `json:"fees" binding:"omitempty,gt=0"`
	TaxAmount          *float64 `json:"tax_amount" binding:"omitempty,gt=0"`
}

func parseExecutionDate(value string) (time.Time, bool) {
	for _, layout := range executionDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID := c.Param("portfolioId")
	if portfolioID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The portfolio id is missing"})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executionDate, ok := parseExecutionDate(req.OrderExecutionDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The order execution date must be in format YYYY/MM/DD HH:mm or YYYY/MM/DD"})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		PortfolioID:        portfolioID,
		UserID:             userID,
		Ticker:             req.Ticker,
		AssetType:          models.AssetType(req.Type),
		Action:             models.Action(req.Action),
		OrderPrice:         req.OrderPrice,
		OrderCurrency:      strings.ToUpper(req.OrderCurrency),
		Amount:             req.Amount,
		OrderExecutionDate: executionDate,
		Fees:               req.Fees,
		TaxAmount:          req.TaxAmount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   order,
	})
}

// parsePagination reads page/limit query params with the endpoint defaults
// and bounds (page >= 1, 1 <= limit <= 100).
func parsePagination(c *gin.Context) (int, int, bool) {
	page := 1
	limit := 20
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The page must be a number."})
			return 0, 0, false
		}
		if n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The page must be at least 1."})
			return 0, 0, false
		}
		page = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The limit must be a number."})
			return 0, 0, false
		}
		if n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The limit must be at least 1."})
			return 0, 0, false
		}
		if n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The limit cannot exceed 100."})
			return 0, 0, false
		}
		limit = n
	}
	return page, limit, true
}

func parseOptionalFloat(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The value entered isn't a number."})
		return nil, false
	}
	return &v, true
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}

	assetType := models.AssetType(c.Query("type"))
	if assetType != "" && !assetType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The type must be one of the followings STOCK, CRYPTO"})
		return
	}
	action := models.Action(c.Query("action"))
	if action != "" && !action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The type must be one of the followings BUY, SELL"})
		return
	}
	orderPrice, ok := parseOptionalFloat(c, "order_price")
	if !ok {
		return
	}
	amount, ok := parseOptionalFloat(c, "amount")
	if !ok {
		return
	}

	result, err := h.orders.ListOrders(c.Request.Context(), userID, services.ListOrdersInput{
		Ticker:        c.Query("ticker"),
		AssetType:     assetType,
		Action:        action,
		OrderPrice:    orderPrice,
		OrderCurrency: c.Query("order_currency"),
		Amount:        amount,
		PortfolioID:   c.Query("portfolio_id"),
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The order id is missing"})
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), orderID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
