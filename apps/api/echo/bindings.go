package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// dateParam parses an optional YYYY-MM-DD query param; the zero Date means "not given".
func dateParam(ctx echo.Context, name string) (core.Date, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return core.Date{}, core.NewFieldValidationError(name, core.ErrInvalidDate.Error())
	}
	return d, nil
}

// monthParam parses an optional YYYY-MM query param; the zero Month means "not given".
func monthParam(ctx echo.Context, name string) (core.Month, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return core.Month{}, nil
	}
	m, err := core.ParseMonth(val)
	if err != nil {
		return core.Month{}, core.NewFieldValidationError(name, err.Error())
	}
	return m, nil
}

func idParam(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
