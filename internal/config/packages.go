package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CreditPackage is a purchasable bundle of credits shown on the credits page.
type CreditPackage struct {
	ID      string  `mapstructure:"id" json:"id"`
	Name    string  `mapstructure:"name" json:"name"`
	Credits int64   `mapstructure:"credits" json:"credits"`
	Price   float64 `mapstructure:"price" json:"price"`
	Popular bool    `mapstructure:"popular" json:"popular,omitempty"`
}

type PackageCatalog struct {
	Packages []CreditPackage `mapstructure:"packages" json:"packages"`
}

func DefaultPackageCatalog() PackageCatalog {
	return PackageCatalog{
		Packages: []CreditPackage{
			{ID: "basic", Name: "Basic", Credits: 1000, Price: 10},
			{ID: "pro", Name: "Professional", Credits: 5000, Price: 45, Popular: true},
			{ID: "business", Name: "Business", Credits: 20000, Price: 160},
			{ID: "enterprise", Name: "Enterprise", Credits: 100000, Price: 700},
		},
	}
}

var defaultPackageConfigPaths = []string{
	"/var/lib/apicredits/config",
	"/etc/apicredits",
	".",
}

type PackageCatalogHolder struct {
	current atomic.Value // holds PackageCatalog
}

func NewPackageCatalogHolder() (*PackageCatalogHolder, error) {
	return LoadPackageCatalog(defaultPackageConfigPaths...)
}

// LoadPackageCatalog reads packages.yml from the first matching path and
// watches it for changes. Defaults are used when no file exists.
func LoadPackageCatalog(paths ...string) (*PackageCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("packages")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("APICREDITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PackageCatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPackageCatalog())
		return holder, nil
	}

	cfg, err := decodePackageCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePackageCatalog(v)
		if err != nil {
			zap.L().Warn("package catalog reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("package catalog reloaded", zap.String("file", e.Name), zap.Int("packages", len(updated.Packages)))
	})

	return holder, nil
}

func (h *PackageCatalogHolder) Get() PackageCatalog {
	if h == nil {
		return DefaultPackageCatalog()
	}
	return h.current.Load().(PackageCatalog)
}

func decodePackageCatalog(v *viper.Viper) (PackageCatalog, error) {
	var cfg PackageCatalog
	if err := v.Unmarshal(&cfg); err != nil {
		return PackageCatalog{}, err
	}
	for i := range cfg.Packages {
		cfg.Packages[i].Name = strings.TrimSpace(cfg.Packages[i].Name)
		id := strings.TrimSpace(cfg.Packages[i].ID)
		if id == "" {
			id = slug.Make(cfg.Packages[i].Name)
		}
		cfg.Packages[i].ID = id
	}
	if err := validatePackageCatalog(cfg); err != nil {
		return PackageCatalog{}, err
	}
	return cfg, nil
}

func validatePackageCatalog(cfg PackageCatalog) error {
	if len(cfg.Packages) == 0 {
		return errors.New("packages cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Packages))
	for _, pkg := range cfg.Packages {
		if pkg.ID == "" {
			return errors.New("package id cannot be empty")
		}
		if _, ok := seen[pkg.ID]; ok {
			return fmt.Errorf("duplicate package id %q", pkg.ID)
		}
		seen[pkg.ID] = struct{}{}
		if pkg.Credits <= 0 {
			return fmt.Errorf("package %q credits must be positive", pkg.ID)
		}
		if pkg.Price <= 0 {
			return fmt.Errorf("package %q price must be positive", pkg.ID)
		}
	}
	return nil
}
