package middleware

import (
	"context"
	"strings"
	"time"

	pkglog "github.com/Enochthedev/ProjectHub-backend-sub007/pkg/log"

	kratoserrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// slowRequestThreshold marks requests worth a dedicated warning. AI calls
// routinely take seconds, so this is generous.
const slowRequestThreshold = 10 * time.Second

// Logging returns a middleware that logs every HTTP request with its
// method, path, status, and duration. It generates a request ID (or reuses
// X-Request-ID) and injects it into the context so downstream logs share it.
func Logging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				ip        string
				userAgent string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}

					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")

					requestID = httpReq.Header.Get("X-Request-ID")
					if requestID == "" {
						requestID = pkglog.GenerateRequestID()
					}
				}
			}

			ctx = pkglog.WithRequestContext(ctx, requestID, "")

			reply, err := handler(ctx, req)

			duration := time.Since(startTime)
			status := extractHTTPStatus(err)

			helper.Infow(
				"msg", "request completed",
				"request_id", requestID,
				"method", method,
				"path", path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"ip", ip,
				"user_agent", userAgent,
			)

			if duration > slowRequestThreshold {
				helper.Warnw(
					"msg", "slow request",
					"request_id", requestID,
					"method", method,
					"path", path,
					"duration_ms", duration.Milliseconds(),
					"threshold_ms", slowRequestThreshold.Milliseconds(),
				)
			}

			return reply, err
		}
	}
}

// extractClientIP prefers X-Real-IP, then the first X-Forwarded-For entry,
// then the socket address.
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ips := strings.Split(forwarded, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	return req.RemoteAddr
}

// extractHTTPStatus maps an error to the HTTP status the client saw.
func extractHTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	if se := kratoserrors.FromError(err); se != nil {
		return int(se.Code)
	}
	return 500
}
