package migration

import (
	"github.com/smallbiznis/apicredits/internal/config"
	"github.com/smallbiznis/apicredits/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			log.Info("database migrations skipped")
			return nil
		}

		if db.ConfigFromApp(cfg).Type != db.TypePostgres {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
			log.Info("database schema synced", zap.String("dialect", conn.Dialector.Name()))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("database migrations applied", zap.String("dialect", "postgres"))
		return nil
	}),
)
