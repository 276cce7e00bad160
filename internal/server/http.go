package server

import (
	"context"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/server/middleware"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	assistant *service.AssistantService,
	ops *service.OpsService,
	registry *prometheus.Registry,
	logger log.Logger,
) *http.Server {
	var apiKey string
	var opts []http.ServerOption

	if c != nil && c.Http != nil {
		apiKey = c.Http.ApiKey
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout > 0 {
			opts = append(opts, http.Timeout(c.Http.Timeout))
		}
	}

	opts = append(opts, http.Middleware(
		recovery.Recovery(),
		middleware.Auth(apiKey, logger),
		middleware.Logging(logger),
	))

	srv := http.NewServer(opts...)

	registerAssistantRoutes(srv, assistant, ops)

	// Prometheus scrape endpoint, outside the authenticated route tree.
	srv.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return srv
}

func registerAssistantRoutes(srv *http.Server, assistant *service.AssistantService, ops *service.OpsService) {
	r := srv.Route("/v1")

	r.POST("/assistant/ask", func(ctx http.Context) error {
		var in service.AskRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return assistant.Ask(c, req.(*service.AskRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/assistant/health", func(ctx http.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return ops.ListServiceHealth(c), nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/assistant/health/{name}", func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return ops.GetServiceHealth(c, name)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/assistant/health/{name}/reset", func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			ops.ResetServiceHealth(c, name)
			return map[string]bool{"success": true}, nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/assistant/health/{name}/circuit/open", func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		var in service.OpenCircuitRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			ops.OpenCircuit(c, name, req.(*service.OpenCircuitRequest))
			return map[string]bool{"success": true}, nil
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/assistant/health/{name}/circuit/close", func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			ops.CloseCircuit(c, name)
			return map[string]bool{"success": true}, nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/assistant/health/{name}/recommendations", func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return ops.GetRecommendations(c, name), nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.GET("/assistant/errors/{user_id}", func(ctx http.Context) error {
		userID := ctx.Vars().Get("user_id")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return ops.GetErrorMetrics(c, userID)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})

	r.POST("/assistant/errors/{user_id}/reset", func(ctx http.Context) error {
		userID := ctx.Vars().Get("user_id")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			ops.ResetErrorMetrics(c, userID)
			return map[string]bool{"success": true}, nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})
}
