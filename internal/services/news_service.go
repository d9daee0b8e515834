package services

import (
	"context"
	"errors"

	"hisui-backend/internal/apperr"
	"hisui-backend/internal/models"
	"hisui-backend/internal/store"
)

// NewsService is a read/delete surface over externally ingested articles.
type NewsService struct {
	news store.NewsStore
}

func NewNewsService(stores *store.Stores) *NewsService {
	return &NewsService{news: stores.News}
}

type NewsPage struct {
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"totalPages"`
	News       []models.News `json:"news"`
}

func (s *NewsService) Search(ctx context.Context, filter store.NewsFilter, page, limit int) (*NewsPage, error) {
	news, total, err := s.news.Search(ctx, filter, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}
	if len(news) == 0 {
		return nil, apperr.NotFound("No news found with the provided filters")
	}
	return &NewsPage{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
		News:       news,
	}, nil
}

func (s *NewsService) Delete(ctx context.Context, newsID string) error {
	if _, err := s.news.ByID(ctx, newsID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("News not found")
		}
		return err
	}
	return s.news.Delete(ctx, newsID)
}
