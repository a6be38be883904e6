// Package services contains server-side business logic. This file implements
// ArticleService: article CRUD plus the cached, filtered article listing.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/dbx"
	"github.com/dmitrijs2005/bloghub/internal/logging"
	"github.com/dmitrijs2005/bloghub/internal/server/cache"
	"github.com/dmitrijs2005/bloghub/internal/server/config"
	"github.com/dmitrijs2005/bloghub/internal/server/metrics"
	"github.com/dmitrijs2005/bloghub/internal/server/models"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/repomanager"
)

// Listing pagination bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListingKey derives the cache key of one listing request. Equal inputs give
// equal keys; the canonical filter form keeps distinct inputs apart.
func ListingKey(page, limit int, filter models.ArticleFilter) string {
	return fmt.Sprintf("%s:%d:%d:%s", common.ArticleListNamespace, page, limit, filter.Canonical())
}

// ListingPattern matches every listing key.
func ListingPattern() string {
	return common.ArticleListNamespace + ":*"
}

// ArticleService serves article reads and writes. Listings go through the
// cache; every successful mutation invalidates the whole listing namespace.
type ArticleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.Cache
	cacheTTL    time.Duration
	log         logging.Logger
	now         func() time.Time
}

// NewArticleService constructs an ArticleService.
func NewArticleService(db *sql.DB, m repomanager.RepositoryManager, c cache.Cache, cfg *config.Config, log logging.Logger) *ArticleService {
	return &ArticleService{
		db:          db,
		repomanager: m,
		cache:       c,
		cacheTTL:    cfg.CacheTTL,
		log:         log.With("module", "articles"),
		now:         time.Now,
	}
}

// List returns one page of articles matching filter. Limits above MaxLimit
// are clamped. A cached page is returned as stored; on a miss the store is
// queried and the result cached for the configured TTL. Cache failures never
// fail the request.
func (s *ArticleService) List(ctx context.Context, page, limit int, filter models.ArticleFilter) (*models.ArticlePage, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("%w: page and limit must be positive", common.ErrorValidation)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if rng, ok := filter.Published(); ok && !rng.Valid() {
		return nil, fmt.Errorf("%w: startDate is after endDate", common.ErrorValidation)
	}
	// the canonical JSON would fold invalid bytes into U+FFFD and merge keys
	if title, ok := filter.Title(); ok && !utf8.ValidString(string(title)) {
		return nil, fmt.Errorf("%w: title is not valid UTF-8", common.ErrorValidation)
	}
	if author, ok := filter.Author(); ok && !utf8.ValidString(string(author)) {
		return nil, fmt.Errorf("%w: authorId is not valid UTF-8", common.ErrorValidation)
	}

	key := ListingKey(page, limit, filter)

	if cached, ok := s.lookup(ctx, key); ok {
		return cached, nil
	}

	data, total, err := s.repomanager.Articles(s.db).FindPage(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing articles: %w", err)
	}
	if data == nil {
		data = []models.Article{}
	}
	result := &models.ArticlePage{Data: data, Total: total}

	s.store(ctx, key, result)
	return result, nil
}

func (s *ArticleService) lookup(ctx context.Context, key string) (*models.ArticlePage, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			metrics.RecordCacheLookup(metrics.CacheMiss)
			return nil, false
		}
		metrics.RecordCacheLookup(metrics.CacheError)
		s.log.Warn(ctx, "cache read failed", "key", key, "error", err)
		return nil, false
	}

	var p models.ArticlePage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil || p.Data == nil {
		metrics.RecordCacheLookup(metrics.CacheError)
		s.log.Warn(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}

	metrics.RecordCacheLookup(metrics.CacheHit)
	s.log.Debug(ctx, "cache hit", "key", key)
	return &p, true
}

func (s *ArticleService) store(ctx context.Context, key string, p *models.ArticlePage) {
	raw, err := json.Marshal(p)
	if err == nil {
		err = s.cache.Set(ctx, key, raw, s.cacheTTL)
	}
	if err != nil {
		metrics.RecordCacheWriteFailure()
		s.log.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}

// InvalidateAll removes every cached listing and returns how many keys were
// deleted. Failures are logged and counted, never returned.
func (s *ArticleService) InvalidateAll(ctx context.Context) int64 {
	n, err := s.cache.DeleteByPattern(ctx, ListingPattern())
	metrics.RecordInvalidation(n, err)
	if err != nil {
		s.log.Error(ctx, "listing invalidation failed", "deleted", n, "error", err)
		return n
	}
	s.log.Debug(ctx, "listing cache invalidated", "deleted", n)
	return n
}

// Get loads one article with its author. The cache is not consulted.
func (s *ArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	a, err := s.repomanager.Articles(s.db).FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading article: %w", err)
	}
	return a, nil
}

// Create stores a new article written by authorID. The author is resolved in
// the same transaction as the insert.
func (s *ArticleService) Create(ctx context.Context, in models.NewArticle, authorID string) (*models.Article, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", common.ErrorValidation)
	}

	// timestamptz keeps microseconds
	published := s.now().UTC().Round(time.Microsecond)
	if in.PublishedDate != nil {
		published = in.PublishedDate.UTC().Round(time.Microsecond)
	}

	var created *models.Article
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		author, err := s.repomanager.Users(tx).GetByID(ctx, authorID)
		if err != nil {
			return fmt.Errorf("error resolving author: %w", err)
		}

		created, err = s.repomanager.Articles(tx).Create(ctx, &models.Article{
			Title:         title,
			Description:   description,
			PublishedDate: published,
			Author:        models.Author{ID: author.ID, Username: author.Username},
		})
		if err != nil {
			return fmt.Errorf("error creating article: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "article created", "article_id", created.ID, "author_id", authorID)
	s.InvalidateAll(ctx)
	return created, nil
}

// Update merges patch into the article. Omitted fields keep their values and
// the author never changes. Concurrent updates are last-write-wins.
func (s *ArticleService) Update(ctx context.Context, id string, patch models.ArticlePatch) (*models.Article, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title must not be empty", common.ErrorValidation)
		}
		patch.Title = &t
	}
	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		if d == "" {
			return nil, fmt.Errorf("%w: description must not be empty", common.ErrorValidation)
		}
		patch.Description = &d
	}

	updated, err := s.repomanager.Articles(s.db).Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("error updating article: %w", err)
	}

	s.log.Info(ctx, "article updated", "article_id", id)
	s.InvalidateAll(ctx)
	return updated, nil
}

// Delete removes the article if requesterID is its author.
func (s *ArticleService) Delete(ctx context.Context, id, requesterID string) error {
	repo := s.repomanager.Articles(s.db)

	a, err := repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading article: %w", err)
	}
	if a.Author.ID != requesterID {
		return common.ErrorForbidden
	}

	n, err := repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error deleting article: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	s.log.Info(ctx, "article deleted", "article_id", id, "author_id", requesterID)
	s.InvalidateAll(ctx)
	return nil
}
