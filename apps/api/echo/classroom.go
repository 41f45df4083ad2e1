package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
)

type classroomApi struct {
	svc      *classroom.Service
	validate *validator.Validate
}

func registerClassroomAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := classroomApi{
		svc:      s.deps.ClassroomSvc,
		validate: s.deps.Validate,
	}

	cg := g.Group("/classrooms", jwt)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("", api.query)
	cg.GET("/by-code", api.retrieveByCode)
	cg.GET("/:id", api.retrieve)
	cg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *classroomApi) create(ctx echo.Context) error {
	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *classroomApi) query(ctx echo.Context) error {
	rooms, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if rooms == nil {
		rooms = []classroom.Classroom{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

// retrieveByCode looks a classroom up by `grade_letter` and `class_number`; a missing param matches NULL.
func (api *classroomApi) retrieveByCode(ctx echo.Context) error {
	var number *int
	if val := strings.TrimSpace(ctx.QueryParam("class_number")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return core.NewFieldValidationError("class_number", "must be an integer")
		}
		number = &n
	}

	room, err := api.svc.GetByCode(ctx.Request().Context(), ctx.QueryParam("grade_letter"), number)
	if err != nil {
		return errors.Wrap(err, "finding classroom by code")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	room, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding classroom by ID")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}
