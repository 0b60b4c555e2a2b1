package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// actorMiddleware resolves the token claims once per request into a core.Actor.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.Subject == "" {
			return errUnauthorized
		}
		ctx.Set(contextActorKey, claims.Actor())
		return next(ctx)
	}
}

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
