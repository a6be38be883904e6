package cli

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bloghub/internal/common"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/repomanager"
)

type migrateStub struct {
	*repomanager.PostgresRepositoryManager
	err   error
	calls int
}

func (m *migrateStub) RunMigrations(context.Context, *sql.DB) error {
	m.calls++
	return m.err
}

func stubDeps(t *testing.T, migrateErr error) (sqlmock.Sqlmock, *migrateStub) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	rm := &migrateStub{PostgresRepositoryManager: repomanager.NewPostgresRepositoryManager(), err: migrateErr}

	oldOpen, oldRM := openDB, newRepoManager
	openDB = func(string) (*sql.DB, error) { return db, nil }
	newRepoManager = func() repomanager.RepositoryManager { return rm }
	t.Cleanup(func() {
		openDB, newRepoManager = oldOpen, oldRM
		_ = db.Close()
	})
	return mock, rm
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	mock, rm := stubDeps(t, nil)
	mock.ExpectClose()

	out, err := run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
	assert.Equal(t, 1, rm.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	boom := errors.New("boom")
	stubDeps(t, boom)

	_, err := run(t, "", "migrate")
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "migrations")
}

func TestMigrate_OpenError(t *testing.T) {
	old := openDB
	openDB = func(string) (*sql.DB, error) { return nil, errors.New("no driver") }
	t.Cleanup(func() { openDB = old })

	_, err := run(t, "", "migrate")
	assert.ErrorContains(t, err, "db init error")
}

func TestRoot_DSNFlagOverridesConfig(t *testing.T) {
	var gotDSN string
	old := openDB
	openDB = func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return nil, errors.New("stop")
	}
	t.Cleanup(func() { openDB = old })

	_, _ = run(t, "", "--dsn", "postgres://override", "migrate")
	assert.Equal(t, "postgres://override", gotDSN)
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := run(t, "", "-c", filepath.Join(t.TempDir(), "nope.json"), "migrate")
	assert.Error(t, err)
}

func TestRoot_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"database_dsn":"postgres://from-file"}`), 0o600))

	var gotDSN string
	old := openDB
	openDB = func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return nil, errors.New("stop")
	}
	t.Cleanup(func() { openDB = old })

	_, _ = run(t, "", "--config", path, "migrate")
	assert.Equal(t, "postgres://from-file", gotDSN)
}

func expectUserInsert(mock sqlmock.Sqlmock, username, email string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(username, email, sqlmock.AnyArg())
}

func TestUserAdd_Flags(t *testing.T) {
	mock, _ := stubDeps(t, nil)
	expectUserInsert(mock, "alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-1", time.Now()))
	mock.ExpectClose()

	out, err := run(t, "s3cret\n", "user", "add", "--username", "alice", "--email", "alice@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "created user u-1 (alice)")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAdd_Prompts(t *testing.T) {
	mock, _ := stubDeps(t, nil)
	expectUserInsert(mock, "bob", "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-2", time.Now()))

	old := readPassword
	readPassword = func(int) ([]byte, error) { return []byte("pw"), nil }
	t.Cleanup(func() { readPassword = old })

	out, err := run(t, "bob\nbob@example.com\n", "user", "add")
	require.NoError(t, err)
	assert.Contains(t, out, "Username\n> ")
	assert.Contains(t, out, "Email\n> ")
	assert.Contains(t, out, "Enter password: ")
	assert.Contains(t, out, "created user u-2 (bob)")
}

func TestUserAdd_Duplicate(t *testing.T) {
	mock, _ := stubDeps(t, nil)
	expectUserInsert(mock, "alice", "alice@example.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := run(t, "pw\n", "user", "add", "-u", "alice", "-e", "alice@example.com", "--password-stdin")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestUserAdd_InvalidEmailNeverTouchesDB(t *testing.T) {
	mock, _ := stubDeps(t, nil)

	_, err := run(t, "pw\n", "user", "add", "-u", "alice", "-e", "not-an-email", "--password-stdin")
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAdd_PasswordReadError(t *testing.T) {
	stubDeps(t, nil)
	old := readPassword
	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	t.Cleanup(func() { readPassword = old })

	_, err := run(t, "", "user", "add", "-u", "alice", "-e", "alice@example.com")
	assert.ErrorContains(t, err, "reading password")
}

func TestCacheFlush(t *testing.T) {
	stubDeps(t, nil)
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("articles:1:10:{}", "x"))
	require.NoError(t, mr.Set("articles:2:10:{}", "y"))
	require.NoError(t, mr.Set("sessions:1", "z"))

	t.Setenv("BLOGHUB_CACHE_BACKEND", "redis")
	t.Setenv("BLOGHUB_REDIS_URL", "redis://"+mr.Addr()+"/0")

	out, err := run(t, "", "cache", "flush")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 2 cached listings")
	assert.False(t, mr.Exists("articles:1:10:{}"))
	assert.True(t, mr.Exists("sessions:1"))
}

func TestCacheFlush_Unreachable(t *testing.T) {
	stubDeps(t, nil)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	t.Setenv("BLOGHUB_CACHE_BACKEND", "redis")
	t.Setenv("BLOGHUB_REDIS_URL", "redis://"+addr+"/0?max_retries=-1")

	_, err := run(t, "", "cache", "flush")
	assert.ErrorContains(t, err, "cache unreachable")
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "blogctl 1.2.3\n", out)
}

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if out.String() != "Name?\n> " {
		t.Fatalf("unexpected prompt %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}

	_, err = GetSimpleText(in, "Name?", &out)
	if err == nil {
		t.Fatal("expected EOF")
	}
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()

	readPassword = func(int) ([]byte, error) { return []byte("secret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out)
	if err != nil || string(pw) != "secret" {
		t.Fatalf("got %q, err=%v", pw, err)
	}

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	if _, err := GetPassword(&out); err == nil {
		t.Fatal("expected error")
	}
}

func articleRow(id, authorID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "title", "description", "published_date", "author_id", "cover_key", "created_at", "updated_at", "username"}).
		AddRow(id, "t", "d", now, authorID, "", now, now, "alice")
}

func TestCoverUpload(t *testing.T) {
	mock, _ := stubDeps(t, nil)

	var gotPath, gotCT string
	var gotBody []byte
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(storage.Close)

	t.Setenv("BLOGHUB_CACHE_BACKEND", "memory")
	t.Setenv("BLOGHUB_S3_BASE_ENDPOINT", storage.URL)
	t.Setenv("BLOGHUB_S3_BUCKET", "covers")

	png := []byte("\x89PNG\r\n\x1a\n0000")
	file := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(file, png, 0o600))

	mock.ExpectQuery(regexp.QuoteMeta("FROM articles a INNER JOIN users u")).
		WithArgs("a-1").WillReturnRows(articleRow("a-1", "u-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM articles a INNER JOIN users u")).
		WithArgs("a-1").WillReturnRows(articleRow("a-1", "u-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET cover_key")).
		WithArgs("a-1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := run(t, "", "cover", "upload", "a-1", "-f", file)
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded articles/")
	assert.True(t, strings.HasPrefix(gotPath, "/covers/articles/"), gotPath)
	assert.Equal(t, "image/png", gotCT)
	assert.Equal(t, png, gotBody)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoverUpload_ArticleMissing(t *testing.T) {
	mock, _ := stubDeps(t, nil)
	t.Setenv("BLOGHUB_CACHE_BACKEND", "memory")

	file := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	mock.ExpectQuery(regexp.QuoteMeta("FROM articles a INNER JOIN users u")).
		WithArgs("a-404").WillReturnError(sql.ErrNoRows)

	_, err := run(t, "", "cover", "upload", "a-404", "-f", file)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCoverUpload_RequiresFile(t *testing.T) {
	_, err := run(t, "", "cover", "upload", "a-1")
	assert.ErrorContains(t, err, "file")
}
