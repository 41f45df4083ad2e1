package echoapi

import (
	"sort"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const (
	contextTokenKey   = "teacherToken"
	contextTeacherKey = "teacher"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// TeacherID is the teacher id carried in the subject.
func (c Claims) TeacherID() (int, error) {
	id, err := strconv.Atoi(c.Subject)
	if err != nil {
		return 0, errUnauthorized
	}
	return id, nil
}

type tokenIssuer struct {
	conf *core.Config
	key  []byte
	now  func() time.Time
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{conf: conf, key: []byte(conf.SecretKey), now: time.Now}
}

func (ti *tokenIssuer) middlewareConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func (ti *tokenIssuer) claims(t teacher.Teacher, origIat ...int64) *Claims {
	now := ti.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.conf.AppName,
			Subject:   strconv.Itoa(t.ID),
			Audience:  "Teachers",
			ExpiresAt: now.Add(ti.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     t.Username,
		Email:        t.Email,
		IsAdmin:      t.IsAdmin(),
		Roles:        t.Roles,
	}
}

// generate signs the claims into a JWT string.
func (ti *tokenIssuer) generate(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *tokenIssuer) authenticate(ctx echo.Context, uname, pwd string, svc *teacher.Service) (teacher.Teacher, string, error) {
	rctx := ctx.Request().Context()

	t, err := svc.GetByUsername(rctx, uname)
	if err != nil {
		if errors.Cause(err) == teacher.ErrNotFound {
			return teacher.Teacher{}, "", errAuthenticationFailed
		}
		return teacher.Teacher{}, "", errors.Wrap(err, "finding teacher by username or email")
	}
	if err = t.CheckPassword(pwd); err != nil {
		return teacher.Teacher{}, "", errAuthenticationFailed
	}
	if !t.IsActive {
		return teacher.Teacher{}, "", errAccountDeactivated
	}
	if t, err = svc.SetLastLogin(rctx, t); err != nil {
		return teacher.Teacher{}, "", errors.Wrap(err, "setting lastLogin")
	}

	token, err := ti.generate(ti.claims(t))
	if err != nil {
		return teacher.Teacher{}, "", errors.Wrap(err, "generating token")
	}
	return t, token, nil
}

func (ti *tokenIssuer) refresh(ctx echo.Context, svc *teacher.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	t, err := getContextTeacher(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context teacher")
	}

	// check if teacher is still active
	if !t.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.conf.Server.JWTRefreshExpirationDelta)
	if ti.now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := ti.generate(ti.claims(t, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextTeacher loads the authenticated teacher once per request.
func getContextTeacher(ctx echo.Context, svc *teacher.Service, clms ...Claims) (teacher.Teacher, error) {
	if t, ok := ctx.Get(contextTeacherKey).(teacher.Teacher); ok {
		return t, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else if claims, err = getContextClaims(ctx); err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "getting context claims")
	}

	id, err := claims.TeacherID()
	if err != nil {
		return teacher.Teacher{}, err
	}
	t, err := svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == teacher.ErrNotFound {
			return teacher.Teacher{}, errUnauthorized
		}
		return teacher.Teacher{}, errors.Wrap(err, "finding teacher by ID")
	}
	ctx.Set(contextTeacherKey, t)
	return t, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) && claims.Roles[i] == role {
				return true
			}
		}
	}
	return false
}
