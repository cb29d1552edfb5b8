package config

import "go.uber.org/fx"

// Module provides the package catalog. Config itself is loaded once in main
// and supplied, since the backend choice shapes the rest of the graph.
var Module = fx.Module("config",
	fx.Provide(NewPackageCatalogHolder),
)
