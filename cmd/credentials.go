package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/ui"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored connection passwords",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <KEY>",
	Short: "Store the password for a connection key (ENV_LOC_VER)",
	Long: `Stores a password in the encrypted credential file (~/.envdiff/credentials.json).
The file is keyed by ` + config.SecretEnvVar + ` when set. Without a terminal the
password is read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		key, err := config.ParseKey(args[0], cfg.Environments)
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			if conn, ok := cfg.Lookup(key.String()); ok {
				user = conn.User
			}
		}

		var password string
		if ui.IsInteractive() {
			password, err = ui.PromptPassword(key.String())
		} else {
			password, err = ui.ReadSecret(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("empty password for %s", key)
		}

		store, err := config.NewCredentialStore("", os.Getenv(config.SecretEnvVar))
		if err != nil {
			return err
		}
		if err := store.Set(key.String(), user, password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s in %s\n", key, store.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsSetCmd.Flags().String("user", "", "Username to store with the password (default: configured user)")
}
