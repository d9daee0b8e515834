package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hisui-backend/internal/services"
	"hisui-backend/internal/store"
)

// AssetHandler serves both catalogs; stock and crypto routes stay separate
// because the catalogs are disjoint namespaces with different metadata.
type AssetHandler struct {
	catalog *services.CatalogService
}

func NewAssetHandler(catalog *services.CatalogService) *AssetHandler {
	return &AssetHandler{catalog: catalog}
}

type CreateStockRequest struct {
	Name        string `json:"name" binding:"required"`
	Ticker      string `json:"ticker" binding:"required"`
	Type        string `json:"type"`
	Sector      string `json:"sector"`
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Exchange    string `json:"exchange"`
}

func (h *AssetHandler) CreateStock(c *gin.Context) {
	var req CreateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stock, err := h.catalog.CreateStock(c.Request.Context(), services.CreateStockInput{
		Name:        req.Name,
		Ticker:      req.Ticker,
		Type:        req.Type,
		Sector:      req.Sector,
		CompanyName: req.CompanyName,
		Country:     req.Country,
		Exchange:    req.Exchange,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Stock created successfully",
		"stock":   stock,
	})
}

type PatchStockRequest struct {
	Name        *string `json:"name"`
	Ticker      *string `json:"ticker"`
	Type        *string `json:"type"`
	Sector      *string `json:"sector"`
	CompanyName *string `json:"company_name"`
	Country     *string `json:"country"`
	Exchange    *string `json:"exchange"`
}

func (h *AssetHandler) PatchStock(c *gin.Context) {
	var req PatchStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.catalog.PatchStock(c.Request.Context(), c.Param("stockId"), services.PatchStockInput{
		Name:        req.Name,
		Ticker:      req.Ticker,
		Type:        req.Type,
		Sector:      req.Sector,
		CompanyName: req.CompanyName,
		Country:     req.Country,
		Exchange:    req.Exchange,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stock updated successfully"})
}

func (h *AssetHandler) SearchStocks(c *gin.Context) {
	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}

	result, err := h.catalog.SearchStocks(c.Request.Context(), store.StockFilter{
		Name:        c.Query("name"),
		Ticker:      c.Query("ticker"),
		Type:        c.Query("type"),
		Sector:      c.Query("sector"),
		CompanyName: c.Query("company_name"),
		Country:     c.Query("country"),
		Exchange:    c.Query("exchange"),
	}, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type CreateCryptoRequest struct {
	Name       string `json:"name" binding:"required"`
	Ticker     string `json:"ticker" binding:"required"`
	Blockchain string `json:"blockchain"`
	Protocol   string `json:"protocol"`
}

func (h *AssetHandler) CreateCrypto(c *gin.Context) {
	var req CreateCryptoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crypto, err := h.catalog.CreateCrypto(c.Request.Context(), services.CreateCryptoInput{
		Name:       req.Name,
		Ticker:     req.Ticker,
		Blockchain: req.Blockchain,
		Protocol:   req.Protocol,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Crypto created successfully",
		"crypto":  crypto,
	})
}

type PatchCryptoRequest struct {
	Name       *string `json:"name"`
	Ticker     *string `json:"ticker"`
	Blockchain *string `json:"blockchain"`
	Protocol   *string `json:"protocol"`
}

func (h *AssetHandler) PatchCrypto(c *gin.Context) {
	var req PatchCryptoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.catalog.PatchCrypto(c.Request.Context(), c.Param("cryptoId"), services.PatchCryptoInput{
		Name:       req.Name,
		Ticker:     req.Ticker,
		Blockchain: req.Blockchain,
		Protocol:   req.Protocol,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Crypto updated successfully"})
}

func (h *AssetHandler) SearchCryptos(c *gin.Context) {
	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}

	result, err := h.catalog.SearchCryptos(c.Request.Context(), store.CryptoFilter{
		Name:       c.Query("name"),
		Ticker:     c.Query("ticker"),
		Blockchain: c.Query("blockchain"),
		Protocol:   c.Query("protocol"),
	}, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
