package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/user"
)

type NonceResponse struct {
	Action string `json:"action"`
	Nonce  string `json:"nonce"`
	Header string `json:"header"`
}

func registerNonceAPI(g *echo.Group, optionalJWT echo.MiddlewareFunc, deps Deps) {
	g.GET("/nonces/:action", func(ctx echo.Context) error {
		viewer, err := getContextViewer(ctx, deps.UserSvc)
		if err != nil {
			return err
		}

		action := ctx.Param("action")
		switch action {
		case user.NonceActionFrontend:
		case user.NonceActionAdmin:
			if !viewer.IsModerator() {
				return core.ErrForbidden
			}
		default:
			return core.ErrNotFound
		}

		return respond(ctx, http.StatusOK, NonceResponse{
			Action: action,
			Nonce:  deps.Nonces.Make(viewer.ID, action),
			Header: nonceHeader,
		})
	}, optionalJWT)
}
