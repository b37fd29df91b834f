package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/flowmarket/internal/auth"
	"github.com/smallbiznis/flowmarket/internal/clock"
	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/smallbiznis/flowmarket/internal/observability"
	"github.com/smallbiznis/flowmarket/internal/providers/email"
	"github.com/smallbiznis/flowmarket/internal/ratelimit"
	"github.com/smallbiznis/flowmarket/internal/registration"
	"github.com/smallbiznis/flowmarket/internal/server"
	"github.com/smallbiznis/flowmarket/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,

		// Functional Domains
		auth.Module,
		email.Module,
		ratelimit.Module,
		registration.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
