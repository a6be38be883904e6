package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bloghub/internal/netx"
	"github.com/dmitrijs2005/bloghub/internal/server"
	"github.com/dmitrijs2005/bloghub/internal/server/services"
)

// httpClient is used for the object storage upload.
var httpClient = http.DefaultClient

func newCoverCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover",
		Short: "Manage article cover images",
	}

	var file string
	upload := &cobra.Command{
		Use:   "upload <article-id>",
		Short: "Upload a cover image on behalf of the article's author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			articleID := args[0]

			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			ch, err := server.NewCache(e.cfg)
			if err != nil {
				return fmt.Errorf("cache init error: %w", err)
			}
			defer ch.Close()

			db, err := e.openDB()
			if err != nil {
				return fmt.Errorf("db init error: %w", err)
			}
			defer db.Close()

			rm := newRepoManager()
			articles := services.NewArticleService(db, rm, ch, e.cfg, e.logger)
			covers := services.NewCoverService(db, rm, articles, e.cfg, e.logger)

			a, err := articles.Get(ctx, articleID)
			if err != nil {
				return err
			}
			up, err := covers.UploadURL(ctx, a.ID, a.Author.ID)
			if err != nil {
				return err
			}
			if err := netx.PutPresigned(ctx, httpClient, up.URL, http.DetectContentType(body), body); err != nil {
				return err
			}
			cmd.Printf("uploaded %s (%d bytes)\n", up.Key, len(body))
			return nil
		},
	}
	upload.Flags().StringVarP(&file, "file", "f", "", "image file to upload")
	_ = upload.MarkFlagRequired("file")

	cmd.AddCommand(upload)
	return cmd
}
