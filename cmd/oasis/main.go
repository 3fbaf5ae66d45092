package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oasis-iglesia/oasis/config"
	"github.com/oasis-iglesia/oasis/internal/adminapi"
	"github.com/oasis-iglesia/oasis/internal/app"
	"github.com/oasis-iglesia/oasis/internal/webserver"
)

var configPath string

//go:generate swag init -g main.go -d ./,../../internal/adminapi,../../internal/channel,../../internal/domain -o ../../docs

// @title Oasis channel admin API
// @version 1.0
// @description Outbound WhatsApp channel: status, pairing, kill switch, test sends and audit.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	root := &cobra.Command{
		Use:           "oasis",
		Short:         "Oasis church platform: outbound WhatsApp channel manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to oasis.yml (defaults + OASIS_* env when empty)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(settingsCmd())
	root.AddCommand(channelCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	return config.LoadConfig(configPath)
}

// openApp loads the configuration and initializes the application without
// starting background jobs.
func openApp() (*app.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := app.NewApplication(cfg)
	if err := a.Init(cfg); err != nil {
		a.Release()
		return nil, err
	}
	return a, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, webhook receiver and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.StartBackgroundJobs(ctx)
			srv := webserver.Init(a)
			adminapi.Init()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				zap.L().Info("shutting down admin api")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func migrateCmd() *cobra.Command {
	var (
		track bool
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()
			if reset {
				a.InitDb()
				fmt.Println("tables recreated")
				return nil
			}
			if err := a.MigrateDB(track); err != nil {
				return err
			}
			fmt.Println("migration done")
			return nil
		},
	}
	cmd.Flags().BoolVar(&track, "track", false, "log the migration SQL")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop and recreate every table")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := webserver.IssueToken(cfg.Web.Secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "operator name recorded in the operation log")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
