package apikey

import (
	"github.com/smallbiznis/apicredits/internal/apikey/repository"
	"github.com/smallbiznis/apicredits/internal/apikey/service"
	"github.com/smallbiznis/apicredits/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(service.New),
)

// RepositoryModule keeps keys in the SQL database when one is configured and
// in process memory otherwise.
func RepositoryModule(backend string) fx.Option {
	if backend == config.StoreBackendSQL {
		return fx.Provide(repository.NewSQLRepository)
	}
	return fx.Provide(repository.NewMemoryRepository)
}
