package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/solatis/regcheck/internal/core/auth"
	"github.com/solatis/regcheck/internal/core/config"
	"github.com/solatis/regcheck/internal/core/db"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys for the evaluation service",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Issue a new API key; the key is printed once and never stored",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke KEY_ID",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, queries, err := openDB(cmd, true)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewStore(queries).RevokeAPIKey(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret to bind the key to (default: newest configured)")
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set RC_HMAC_SECRET environment variable)")
	}

	secretID, _ := cmd.Flags().GetString("secret-id")
	if secretID == "" {
		// secret ids are UUIDv7 hex, so the greatest sorts newest
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		secretID = ids[len(ids)-1]
	}
	secret, ok := secrets[secretID]
	if !ok {
		return fmt.Errorf("secret %s: %w", secretID, auth.ErrUnknownKey)
	}

	key, hash, err := auth.GenerateAPIKey(secretID, secret)
	if err != nil {
		return err
	}

	database, queries, err := openDB(cmd, true)
	if err != nil {
		return err
	}
	defer database.Close()

	keyID := uuid.Must(uuid.NewV7()).String()
	if err := db.NewStore(queries).InsertAPIKey(context.Background(), keyID, args[0], secretID, hash); err != nil {
		return err
	}
	logger.Info("api key issued", "api_key_id", keyID, "name", args[0], "secret_id", secretID)
	fmt.Fprintf(cmd.OutOrStdout(), "key id: %s\napi key: %s\n", keyID, key)
	return nil
}
