package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/apicredits/internal/apikey"
	"github.com/smallbiznis/apicredits/internal/clock"
	"github.com/smallbiznis/apicredits/internal/config"
	"github.com/smallbiznis/apicredits/internal/credit"
	"github.com/smallbiznis/apicredits/internal/metering"
	"github.com/smallbiznis/apicredits/internal/migration"
	"github.com/smallbiznis/apicredits/internal/observability"
	"github.com/smallbiznis/apicredits/internal/payment"
	"github.com/smallbiznis/apicredits/internal/ratelimit"
	"github.com/smallbiznis/apicredits/internal/server"
	"github.com/smallbiznis/apicredits/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Storage is chosen with STORE_BACKEND (memory, sql, bolt, redis).

Examples:
  apicredits serve
  STORE_BACKEND=sql DATABASE_TYPE=postgres apicredits serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			app := fx.New(appOptions(cfg)...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")

	return cmd
}

// appOptions composes the application for cfg. The SQL database and its
// migrations are only wired when a SQL backend is selected.
func appOptions(cfg config.Config) []fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg),
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
	}

	if cfg.StoreBackend == config.StoreBackendSQL {
		opts = append(opts, db.Module, migration.Module)
	}

	opts = append(opts,
		credit.StoreModule(cfg.StoreBackend),
		credit.Module,
		apikey.RepositoryModule(cfg.StoreBackend),
		apikey.Module,
		metering.RepositoryModule(cfg.StoreBackend),
		metering.Module,
		ratelimit.Module,
		payment.Module,
		server.Module,
	)

	return opts
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
