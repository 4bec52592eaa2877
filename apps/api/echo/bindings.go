package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-qa/core"
)

const orderingParam = "ordering"

type pageParams struct {
	Page    int `query:"page"`
	PerPage int `query:"per_page"`
}

func (pp pageParams) pagination() core.Pagination {
	return core.Pagination{Page: pp.Page, PerPage: pp.PerPage}
}

func bindOrdering(ctx echo.Context, allowed ...string) ([]core.DBOrdering, error) {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

func fieldError(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}

// parseMillis reads a Unix milliseconds timestamp; empty values are the zero time.
func parseMillis(field, val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, fieldError(field, "must be a unix timestamp in milliseconds")
	}
	return fromMillis(ms), nil
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / int64(time.Millisecond)
}
