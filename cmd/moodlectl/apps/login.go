package apps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/adapter"
	"github.com/h2hsecure/moodlews/internal/domain"
)

var (
	loginUsername string
	loginPassword string
	loginService  string
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Fetch a web service token and keep it in the credential store",
	Long:  AppDescription,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(Login)
	},
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token of the configured server",
	Long:  AppDescription,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(Logout)
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "moodle username (default from config)")
	LoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "moodle password (default from config)")
	LoginCmd.Flags().StringVar(&loginService, "service", "", "external service name (default from config)")
}

func Login(ctx context.Context, e *env) error {
	cfg := e.cfg.Moodle

	username := firstNonEmpty(loginUsername, cfg.Username)
	password := firstNonEmpty(loginPassword, cfg.Password)
	service := firstNonEmpty(loginService, cfg.Service)

	if cfg.Server == "" {
		return errors.New("no server configured: set moodle.server, MOODLE_SERVER or --server")
	}

	token, err := e.moodle.FetchToken(ctx, cfg.Server, username, password, service)
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}

	store, err := adapter.NewBoltDB(e.cfg.StorePath, false)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msgf("db close")
		}
	}()

	err = store.SaveToken(ctx, domain.Credential{
		Server:   cfg.Server,
		Token:    token,
		Username: username,
		Created:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	log.Info().Str("server", domain.BaseURL(cfg.Server)).Str("user", username).Msg("logged in")

	return nil
}

func Logout(ctx context.Context, e *env) error {
	store, err := adapter.NewBoltDB(e.cfg.StorePath, false)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msgf("db close")
		}
	}()

	if err := store.DeleteToken(ctx, e.cfg.Moodle.Server); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
