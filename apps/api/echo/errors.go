package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/user"
)

const codeUnauthorized = "unauthorized"

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
)

type (
	successResponse struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}

	failureResponse struct {
		Success bool              `json:"success"`
		Error   string            `json:"error"`
		Code    string            `json:"code"`
		Fields  map[string]string `json:"fields,omitempty"`
	}
)

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, successResponse{Success: true, Data: data})
}

var codeStatuses = map[string]int{
	core.CodeNotFound:              http.StatusNotFound,
	core.CodeForbidden:             http.StatusForbidden,
	core.CodeValidationFailed:      http.StatusBadRequest,
	core.CodeSecurityCheckFailed:   http.StatusForbidden,
	core.CodeRateLimited:           http.StatusTooManyRequests,
	core.CodeDependencyUnavailable: http.StatusServiceUnavailable,
	core.CodeUnexpected:            http.StatusInternalServerError,
}

func httpStatusCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return core.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return core.CodeNotFound
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return core.CodeValidationFailed
	default:
		return core.CodeUnexpected
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var status int
		resp := failureResponse{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				status = http.StatusUnauthorized
			} else {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
				status = origErr.Code
			}
			resp.Code = httpStatusCode(status)
			resp.Error = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			err = core.TranslateValidationErrors(origErr, translator)
			status, resp = failure(err)
		default:
			status, resp = failure(err)
			if status == http.StatusInternalServerError {
				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(resp.Error, errors.Wrap(err, resp.Error), usr)

				if ctx.Echo().Debug {
					resp.Error = err.Error()
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(status)
			} else {
				err = ctx.JSON(status, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// failure maps errors of the core packages to a status and a response body.
func failure(err error) (int, failureResponse) {
	code := core.ErrorCode(err)
	resp := failureResponse{Code: code, Error: err.Error()}

	switch code {
	case core.CodeValidationFailed:
		if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
			resp.Error = vErr.Error()
			if len(vErr.Fields) > 0 {
				resp.Fields = make(map[string]string, len(vErr.Fields))
				for _, fErr := range vErr.Fields {
					resp.Fields[fErr.Field] = fErr.Error
				}
			}
		}
	case core.CodeNotFound, core.CodeForbidden, core.CodeSecurityCheckFailed,
		core.CodeRateLimited, core.CodeDependencyUnavailable:
		resp.Error = errors.Cause(err).Error()
	default:
		resp.Error = http.StatusText(http.StatusInternalServerError)
	}
	return codeStatuses[code], resp
}
