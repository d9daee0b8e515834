package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hisui-backend/internal/services"
)

type PortfolioHandler struct {
	portfolios *services.PortfolioService
}

func NewPortfolioHandler(portfolios *services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios}
}

type CreatePortfolioRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=128"`
	Description string `json:"description" binding:"max=500"`
}

func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	portfolio, err := h.portfolios.Create(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Portfolio created successfully",
		"portfolio": portfolio,
	})
}

func (h *PortfolioHandler) ListPortfolios(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	portfolios, err := h.portfolios.List(c.Request.Context(), userID, c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

type PatchPortfolioRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=128"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

func (h *PortfolioHandler) PatchPortfolio(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID := c.Param("portfolioId")

	var req PatchPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.portfolios.Patch(c.Request.Context(), portfolioID, userID, req.Name, req.Description); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Portfolio updated successfully"})
}

func (h *PortfolioHandler) DeletePortfolio(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID := c.Param("portfolioId")

	if err := h.portfolios.Delete(c.Request.Context(), portfolioID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *PortfolioHandler) ViewPortfolioAssets(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID := c.Param("portfolioId")

	assets, err := h.portfolios.ViewAssets(c.Request.Context(), portfolioID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, assets)
}
