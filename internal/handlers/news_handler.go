package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hisui-backend/internal/services"
	"hisui-backend/internal/store"
)

var newsDateLayouts = []string{time.RFC3339, "2006-01-02"}

type NewsHandler struct {
	news *services.NewsService
}

func NewNewsHandler(news *services.NewsService) *NewsHandler {
	return &NewsHandler{news: news}
}

func parseNewsDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range newsDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format"})
	return nil, false
}

func (h *NewsHandler) SearchNews(c *gin.Context) {
	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}

	order := c.DefaultQuery("order", "desc")
	if order != "asc" && order != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The order must be one of the followings asc, desc"})
		return
	}

	publishedAt, ok := parseNewsDate(c, "published_at")
	if !ok {
		return
	}
	publishedGTE, ok := parseNewsDate(c, "published_gte")
	if !ok {
		return
	}
	publishedLTE, ok := parseNewsDate(c, "published_lte")
	if !ok {
		return
	}

	result, err := h.news.Search(c.Request.Context(), store.NewsFilter{
		Title:         c.Query("title"),
		Author:        c.Query("author"),
		PublisherName: c.Query("publisher_name"),
		PublishedAt:   publishedAt,
		PublishedGTE:  publishedGTE,
		PublishedLTE:  publishedLTE,
		SortAsc:       order == "asc",
	}, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *NewsHandler) DeleteNews(c *gin.Context) {
	newsID := c.Param("newsId")
	if newsID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The news id is missing"})
		return
	}

	if err := h.news.Delete(c.Request.Context(), newsID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
