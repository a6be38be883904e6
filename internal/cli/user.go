package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/bloghub/internal/server/services"
)

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd(e))
	return cmd
}

func newUserAddCmd(e *env) *cobra.Command {
	var (
		username      string
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long: `Create a user. Missing username or email are prompted for; the password
is read from the terminal without echo, or as one line from stdin with
--password-stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username == "" {
				if username, err = GetSimpleText(e.in, "Username", e.out); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = GetSimpleText(e.in, "Email", e.out); err != nil {
					return err
				}
			}

			var password []byte
			if passwordStdin {
				line, err := readLine(e.in)
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				password = []byte(line)
			} else if password, err = GetPassword(e.out); err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			defer clear(password)

			db, err := e.openDB()
			if err != nil {
				return fmt.Errorf("db init error: %w", err)
			}
			defer db.Close()

			users := services.NewUserService(db, newRepoManager(), e.cfg, e.logger)
			u, err := users.Register(cmd.Context(), username, email, string(password))
			if err != nil {
				return err
			}
			cmd.Printf("created user %s (%s)\n", u.ID, u.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
