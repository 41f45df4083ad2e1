package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

type classApi struct {
	svc      *schedule.Service
	teachers *teacher.Service
	ledger   *ledger.Service
	validate *validator.Validate
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := classApi{
		svc:      s.deps.ScheduleSvc,
		teachers: s.deps.TeacherSvc,
		ledger:   s.deps.LedgerSvc,
		validate: s.deps.Validate,
	}

	cg := g.Group("/classes", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.GET("/mine", api.queryMine)
	cg.GET("/date/:date", api.queryByDate)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.updateAttendance)
	cg.DELETE("/:id", api.destroy)
}

func (api *classApi) create(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}

	var data schedule.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) query(ctx echo.Context) error {
	date, err := dateParam(ctx, "date")
	if err != nil {
		return err
	}
	return api.list(ctx, schedule.QueryFilter{Date: date})
}

func (api *classApi) queryMine(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	return api.list(ctx, schedule.QueryFilter{TeacherID: t.ID})
}

func (api *classApi) queryByDate(ctx echo.Context) error {
	date, err := core.ParseDate(ctx.Param("date"))
	if err != nil {
		return core.NewFieldValidationError("date", err.Error())
	}
	return api.list(ctx, schedule.QueryFilter{Date: date})
}

func (api *classApi) list(ctx echo.Context, filter schedule.QueryFilter) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []schedule.ScheduledClass{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	c, err := api.svc.GetOwned(ctx.Request().Context(), t, id)
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) updateAttendance(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data UpdateAttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAttendanceRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	c, err := api.ledger.SetAttendance(ctx.Request().Context(), id, *data.Attended, t)
	if err != nil {
		return errors.Wrap(err, "setting attendance")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.DeleteOwned(ctx.Request().Context(), t, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type UpdateAttendanceRequest struct {
	Attended *bool `json:"attended" validate:"required"`
}
