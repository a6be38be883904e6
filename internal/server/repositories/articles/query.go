package articles

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bloghub/internal/server/models"
)

const articleColumns = `a.id, a.title, a.description, a.published_date, a.author_id,
		COALESCE(a.cover_key, ''), a.created_at, a.updated_at`

// listQuery holds the SQL for one filtered listing: the page select and the
// matching count, sharing the same FROM/WHERE and positional args.
type listQuery struct {
	selectSQL  string
	countSQL   string
	args       []any
	joinsUsers bool
}

// buildListQuery renders the listing SQL for filter. Only the dimensions
// present in filter become predicates. The users table is joined only when
// filtering by author.
func buildListQuery(filter models.ArticleFilter) listQuery {
	var (
		q     listQuery
		where []string
	)

	from := "articles a"
	cols := articleColumns

	if title, ok := filter.Title(); ok {
		q.args = append(q.args, escapeLike(string(title)))
		where = append(where, fmt.Sprintf(`a.title ILIKE '%%' || $%d || '%%'`, len(q.args)))
	}

	if author, ok := filter.Author(); ok {
		q.joinsUsers = true
		from += " INNER JOIN users u ON u.id = a.author_id"
		cols += ", u.username"
		q.args = append(q.args, string(author))
		where = append(where, fmt.Sprintf("u.id = $%d", len(q.args)))
	}

	if rng, ok := filter.Published(); ok {
		if rng.Start != nil {
			q.args = append(q.args, rng.Start.UTC())
			where = append(where, fmt.Sprintf("a.published_date >= $%d", len(q.args)))
		}
		if rng.End != nil {
			q.args = append(q.args, rng.End.UTC())
			where = append(where, fmt.Sprintf("a.published_date <= $%d", len(q.args)))
		}
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	q.countSQL = "SELECT COUNT(*) FROM " + from + clause

	n := len(q.args)
	q.selectSQL = fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY a.published_date DESC, a.id ASC OFFSET $%d LIMIT $%d",
		cols, from, clause, n+1, n+2,
	)
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
