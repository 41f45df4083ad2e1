package echoapi

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const requestIDMaxLen = 64

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// selfOrAdminMiddleware loads the teacher of the `:id` path param into the context under "object".
// Teachers only see themselves; admins see everyone.
func selfOrAdminMiddleware(svc *teacher.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxTchr, err := getContextTeacher(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context teacher")
			}

			id, err := strconv.Atoi(ctx.Param("id"))
			if err != nil {
				return errHttpNotFound
			}
			if id == ctxTchr.ID || ctxTchr.IsAdmin() {
				if t, err := svc.GetByID(ctx.Request().Context(), id); err == nil {
					ctx.Set("object", t)
					return next(ctx)
				} else if errors.Cause(err) != teacher.ErrNotFound {
					return errors.Wrap(err, "finding teacher by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

// requestIDMiddleware keeps a sane X-Request-ID from the client or generates one.
func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	})
}

// requestLoggerMiddleware logs one line per request, at warn level for 4xx and error level for 5xx.
func requestLoggerMiddleware(logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			res := ctx.Response()
			start := time.Now()

			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			rid := res.Header().Get(echo.HeaderXRequestID)
			if len(rid) > requestIDMaxLen {
				rid = rid[:requestIDMaxLen]
			}
			fields := map[string]interface{}{
				"status":     res.Status,
				"method":     req.Method,
				"path":       req.URL.Path,
				"query":      req.URL.RawQuery,
				"ip":         ctx.RealIP(),
				"latency":    time.Since(start).String(),
				"request_id": rid,
			}
			msg := req.Method + " " + req.URL.Path

			switch {
			case res.Status >= 500:
				logger.Error(msg, fields)
			case res.Status >= 400:
				logger.Warn(msg, fields)
			default:
				logger.Info(msg, fields)
			}
			return nil
		}
	}
}
