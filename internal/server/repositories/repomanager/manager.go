package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bloghub/internal/dbx"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/articles"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so that services can
// run several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Articles(db dbx.DBTX) articles.Repository
}
