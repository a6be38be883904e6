package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bloghub/internal/server"
	"github.com/dmitrijs2005/bloghub/internal/server/services"
)

func newCacheCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the article listing cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Remove every cached article listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := server.NewCache(e.cfg)
			if err != nil {
				return fmt.Errorf("cache init error: %w", err)
			}
			defer ch.Close()

			if err := ch.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("cache unreachable: %w", err)
			}

			db, err := e.openDB()
			if err != nil {
				return fmt.Errorf("db init error: %w", err)
			}
			defer db.Close()

			articles := services.NewArticleService(db, newRepoManager(), ch, e.cfg, e.logger)
			n := articles.InvalidateAll(cmd.Context())
			cmd.Printf("removed %d cached listings\n", n)
			return nil
		},
	})
	return cmd
}
