package cli

import (
	"fmt"
	"strings"

	"github.com/ganot/perfscan/internal/config"
	"github.com/ganot/perfscan/internal/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const tokenPrefix = "psk_"

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for bearer authentication",
	}
	cmd.AddCommand(newKeysAddCmd())
	return cmd
}

func newKeysAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Create an API key and print its token",
		Long:  "Create an API key. Only the token's hash is stored, so the printed token cannot be shown again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("key name must not be empty")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg.DB.Path)
			if err != nil {
				return runtimeErr(err)
			}
			defer db.Close()

			token := newToken()
			if err := sqlite.NewAPIKeyRepository(db).Create(cmd.Context(), token, name); err != nil {
				return runtimeErr(fmt.Errorf("creating key: %w", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newToken() string {
	return tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
