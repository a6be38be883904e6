package articles

import (
	"context"

	"github.com/dmitrijs2005/bloghub/internal/server/models"
)

// Repository is the article store.
type Repository interface {
	Create(ctx context.Context, article *models.Article) (*models.Article, error)
	FindByID(ctx context.Context, id string) (*models.Article, error)
	FindPage(ctx context.Context, filter models.ArticleFilter, offset, limit int) ([]models.Article, int64, error)
	Update(ctx context.Context, id string, patch models.ArticlePatch) (*models.Article, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	SetCoverKey(ctx context.Context, id, key string) error
}
