package auth

import (
	authconfig "github.com/smallbiznis/flowmarket/internal/auth/config"
	"github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/internal/auth/oauth"
	"github.com/smallbiznis/flowmarket/internal/auth/repository"
	"github.com/smallbiznis/flowmarket/internal/auth/service"
	"github.com/smallbiznis/flowmarket/internal/auth/session"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("auth",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(authconfig.ParseAuthProvidersFromEnv),
	fx.Provide(authconfig.BuildAuthProviderRegistry),
	fx.Provide(oauth.NewService),
	fx.Provide(session.NewManager),
	fx.Invoke(migrate),
)

func migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(domain.Models()...)
}
