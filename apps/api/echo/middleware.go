package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/user"
)

const nonceHeader = "X-QA-Nonce"

func moderatorMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if !usr.IsModerator() {
				return core.ErrForbidden
			}
			return next(ctx)
		}
	}
}

// nonceMiddleware requires the X-QA-Nonce header to hold a nonce issued to the
// requesting user (or to anonymous visitors) for one of actions.
func nonceMiddleware(nonces *user.Nonces, actions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var userID string
			if claims, err := getContextClaims(ctx); err == nil {
				userID = claims.Subject
			}
			nonce := ctx.Request().Header.Get(nonceHeader)
			for _, action := range actions {
				if nonces.Verify(userID, action, nonce) == nil {
					return next(ctx)
				}
			}
			return core.ErrSecurityCheckFailed
		}
	}
}
