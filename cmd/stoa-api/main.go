package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/stoa/internal/auth"
	"github.com/MarcoPoloResearchLab/stoa/internal/config"
	"github.com/MarcoPoloResearchLab/stoa/internal/database"
	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"github.com/MarcoPoloResearchLab/stoa/internal/logging"
	"github.com/MarcoPoloResearchLab/stoa/internal/messages"
	"github.com/MarcoPoloResearchLab/stoa/internal/profiles"
	"github.com/MarcoPoloResearchLab/stoa/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "stoa-api",
		Short: "Stoa storefront community backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("base-path", defaults.GetString("app.base_path"), "Storefront proxy mount path")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("session.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().Int("page-size", defaults.GetInt("feed.page_size"), "Timeline page size")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("proxy-secret", "", "App proxy shared secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "app.base_path", "base-path")
	bindFlag(cmd, "session.cookie_name", "cookie-name")
	bindFlag(cmd, "feed.page_size", "page-size")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "proxy.shared_secret", "proxy-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	secret := []byte(appConfig.ProxySharedSecret)
	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{Secret: secret})
	if err != nil {
		return err
	}
	bridge, err := auth.NewBridge(auth.BridgeConfig{
		Verifier:        auth.NewSignatureVerifier(secret),
		Codec:           codec,
		CookieName:      appConfig.SessionCookieName,
		DefaultBasePath: appConfig.BasePath,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	feedService, err := feed.NewService(feed.ServiceConfig{
		Database:      db,
		Logger:        logger,
		MaxMediaBytes: appConfig.MaxMediaBytes,
	})
	if err != nil {
		return err
	}
	reader, err := feed.NewReader(feed.ReaderConfig{
		Database: db,
		Names:    profileService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	messageService, err := messages.NewService(messages.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Bridge:        bridge,
		Reader:        reader,
		FeedService:   feedService,
		Profiles:      profileService,
		Messages:      messageService,
		Logger:        logger,
		PageSize:      appConfig.PageSize,
		MaxMediaBytes: appConfig.MaxMediaBytes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
