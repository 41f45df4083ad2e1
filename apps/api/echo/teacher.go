package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/teacher"
)

var errTchrNotFoundInCtx = errors.New("teacher object not found in echo.Context")

type teacherApi struct {
	svc      *teacher.Service
	tokens   *tokenIssuer
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := teacherApi{
		svc:      s.deps.TeacherSvc,
		tokens:   s.tokens,
		validate: s.deps.Validate,
	}

	tg := g.Group("/teachers")

	// un-authed endpoints
	tg.POST("/register", api.register)
	tg.POST("/login", api.login)

	// authed endpoints
	ag := tg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)

	// detail endpoints
	dg := ag.Group("/:id", selfOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *teacherApi) register(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	token, err := api.tokens.generate(api.tokens.claims(t))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusCreated, RegisterResponse{Token: token, Teacher: t})
}

func (api *teacherApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	_, token, err := api.tokens.authenticate(ctx, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *teacherApi) refreshToken(ctx echo.Context) error {
	token, err := api.tokens.refresh(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *teacherApi) me(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get("object").(teacher.Teacher)
	if !ok {
		return errors.Wrap(errTchrNotFoundInCtx, "retrieving object from context")
	}

	// admins cannot delete themselves
	ctxTchr, err := getContextTeacher(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	if t.ID == ctxTchr.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	RegisterResponse struct {
		Token   string          `json:"token"`
		Teacher teacher.Teacher `json:"teacher"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
