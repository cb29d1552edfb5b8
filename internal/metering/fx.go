package metering

import (
	"github.com/smallbiznis/apicredits/internal/config"
	"github.com/smallbiznis/apicredits/internal/metering/repository"
	"github.com/smallbiznis/apicredits/internal/metering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metering.service",
	fx.Provide(service.NewService),
)

func RepositoryModule(backend string) fx.Option {
	if backend == config.StoreBackendSQL {
		return fx.Provide(repository.NewSQLRepository)
	}
	return fx.Provide(repository.NewMemoryRepository)
}
