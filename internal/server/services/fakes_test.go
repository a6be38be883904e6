package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/dbx"
	"github.com/dmitrijs2005/bloghub/internal/server/models"
	articlesrepo "github.com/dmitrijs2005/bloghub/internal/server/repositories/articles"
	usersrepo "github.com/dmitrijs2005/bloghub/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeUsersRepo is an in-memory users.Repository.
type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int

	createErr error
	getErr    error
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	r := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("u-%d", f.nextID)
	u.CreatedAt = time.Now().UTC()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

// fakeArticlesRepo is an in-memory articles.Repository that applies filters
// the same way the SQL does and counts listing queries.
type fakeArticlesRepo struct {
	mu       sync.Mutex
	users    *fakeUsersRepo
	rows     map[string]models.Article
	nextID   int
	findPage int

	findPageErr error
	deleteErr   error
	// deleteNoop makes DeleteByID report zero affected rows.
	deleteNoop bool
}

func newFakeArticlesRepo(users *fakeUsersRepo) *fakeArticlesRepo {
	return &fakeArticlesRepo{users: users, rows: map[string]models.Article{}}
}

func (f *fakeArticlesRepo) seed(a models.Article) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[a.ID] = a
}

func (f *fakeArticlesRepo) pageQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findPage
}

func (f *fakeArticlesRepo) Create(_ context.Context, a *models.Article) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = fmt.Sprintf("a-%03d", f.nextID)
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	f.rows[a.ID] = *a
	return a, nil
}

func (f *fakeArticlesRepo) withUsername(a models.Article) *models.Article {
	if u, err := f.users.GetByID(context.Background(), a.Author.ID); err == nil {
		a.Author.Username = u.Username
	}
	return &a
}

func (f *fakeArticlesRepo) FindByID(_ context.Context, id string) (*models.Article, error) {
	f.mu.Lock()
	a, ok := f.rows[id]
	f.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.withUsername(a), nil
}

func (f *fakeArticlesRepo) FindPage(_ context.Context, filter models.ArticleFilter, offset, limit int) ([]models.Article, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findPage++
	if f.findPageErr != nil {
		return nil, 0, f.findPageErr
	}

	var matched []models.Article
	for _, a := range f.rows {
		if title, ok := filter.Title(); ok && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(string(title))) {
			continue
		}
		if author, ok := filter.Author(); ok && a.Author.ID != string(author) {
			continue
		}
		if rng, ok := filter.Published(); ok {
			if rng.Start != nil && a.PublishedDate.Before(*rng.Start) {
				continue
			}
			if rng.End != nil && a.PublishedDate.After(*rng.End) {
				continue
			}
		}
		a.Author.Username = ""
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PublishedDate.Equal(matched[j].PublishedDate) {
			return matched[i].PublishedDate.After(matched[j].PublishedDate)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.Article{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return append([]models.Article{}, matched[offset:end]...), total, nil
}

func (f *fakeArticlesRepo) Update(_ context.Context, id string, patch models.ArticlePatch) (*models.Article, error) {
	f.mu.Lock()
	a, ok := f.rows[id]
	if !ok {
		f.mu.Unlock()
		return nil, common.ErrorNotFound
	}
	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}
	if patch.PublishedDate != nil {
		a.PublishedDate = patch.PublishedDate.UTC()
	}
	a.UpdatedAt = time.Now().UTC()
	f.rows[id] = a
	f.mu.Unlock()
	return f.withUsername(a), nil
}

func (f *fakeArticlesRepo) DeleteByID(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	if f.deleteNoop {
		return 0, nil
	}
	if _, ok := f.rows[id]; !ok {
		return 0, nil
	}
	delete(f.rows, id)
	return 1, nil
}

func (f *fakeArticlesRepo) SetCoverKey(_ context.Context, id, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.CoverKey = key
	f.rows[id] = a
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	a *fakeArticlesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Articles(db dbx.DBTX) articlesrepo.Repository { return m.a }

// failingCache fails every operation with err.
type failingCache struct {
	err error

	mu   sync.Mutex
	sets int
}

func (c *failingCache) Get(context.Context, string) ([]byte, error) { return nil, c.err }
func (c *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.err
}
func (c *failingCache) Delete(context.Context, ...string) (int64, error)        { return 0, c.err }
func (c *failingCache) DeleteByPattern(context.Context, string) (int64, error) { return 0, c.err }
func (c *failingCache) Ping(context.Context) error                              { return c.err }
func (c *failingCache) Close() error                                            { return nil }

var errBoom = errors.New("boom")
