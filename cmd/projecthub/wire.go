//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/biz"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/data"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/server"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/service"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/openrouter"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.OpenRouter, *conf.Resilience, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		openrouter.ProviderSet,
		StartMaintenanceCron,
		newApp,
	))
}
