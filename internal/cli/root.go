// Package cli implements blogctl, the bloghub admin command line.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bloghub/internal/logging"
	"github.com/dmitrijs2005/bloghub/internal/server/config"
	"github.com/dmitrijs2005/bloghub/internal/server/repositories/repomanager"
)

var version = "dev"

// SetVersion sets the string printed by `blogctl version`.
func SetVersion(v string) {
	version = v
}

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

var newRepoManager = func() repomanager.RepositoryManager {
	return repomanager.NewPostgresRepositoryManager()
}

// env is shared by all subcommands; PersistentPreRunE fills cfg and logger.
type env struct {
	configPath string
	dsn        string
	verbose    bool

	cfg    *config.Config
	logger logging.Logger
	in     *bufio.Reader
	out    io.Writer
}

// NewRootCmd builds the blogctl command tree reading from in and writing to out.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	e := &env{in: bufio.NewReader(in), out: out}

	root := &cobra.Command{
		Use:   "blogctl",
		Short: "bloghub administration CLI",
		Long: `blogctl performs maintenance tasks against a bloghub deployment.

Example usage:
  blogctl migrate                          # Apply pending schema migrations
  blogctl user add --username alice        # Create a user (prompts for the rest)
  blogctl cache flush                      # Drop all cached article listings
  blogctl cover upload <id> -f cover.png   # Upload an article cover image`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "path to JSON config file")
	root.PersistentFlags().StringVarP(&e.dsn, "dsn", "d", "", "PostgreSQL DSN (overrides config)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMigrateCmd(e),
		newUserCmd(e),
		newCacheCmd(e),
		newCoverCmd(e),
		newVersionCmd(),
	)
	return root
}

// Execute runs blogctl against the process's stdio.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx)
}

func (e *env) init() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.dsn != "" {
		cfg.DatabaseDSN = e.dsn
	}
	if e.verbose {
		cfg.LogLevel = "debug"
	}
	e.cfg = cfg
	e.logger = logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	return nil
}

func (e *env) openDB() (*sql.DB, error) {
	return openDB(e.cfg.DatabaseDSN)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the blogctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("blogctl %s\n", version)
			return nil
		},
	}
}
