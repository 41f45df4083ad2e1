package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	"github.com/trezcool/mahudhurio/tests"
)

var (
	ctx = context.Background()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}

	// the ledger clock of every test server
	today = core.NewDate(2024, 5, 2)
)

type testApp struct {
	*Server
	conf   *core.Config
	repos  *storage.Repositories
	ledger *ledger.Service
	clock  *testutil.Clock
	rooms  int
}

type appOption func(conf *core.Config, deps *ServerDeps)

func setup(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	repos := storage.NewMemory(inmemdb.NewDB())
	clock := testutil.NewClock(time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC))
	logger := logsvc.NewNopLogger()

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	teacher.InitValidators(validate, translator)

	ledgerSvc := ledger.NewService(ledger.ServiceDeps{
		TxManager:  repos.Tx,
		Entries:    repos.Ledger,
		Attendance: repos.Ledger,
		Logger:     logger,
		Now:        clock.Now,
		Location:   conf.School.Location,
	})
	deps := ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		TeacherSvc:   teacher.NewService(repos.Teachers),
		ClassroomSvc: classroom.NewService(repos.Classrooms),
		ScheduleSvc:  schedule.NewService(repos.Classes, repos.Classrooms, ledgerSvc),
		LedgerSvc:    ledgerSvc,
	}
	for _, opt := range opts {
		opt(conf, &deps)
	}

	return &testApp{
		Server: NewServer(deps),
		conf:   conf,
		repos:  repos,
		ledger: deps.LedgerSvc,
		clock:  clock,
	}
}

func (app *testApp) teacher(t *testing.T, uname string, roles ...string) teacher.Teacher {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{teacher.RoleTeacher}
	}
	return testutil.CreateTeacher(t, app.repos.Teachers, "Teacher", uname, uname+"@school.test", "", roles, true)
}

func (app *testApp) class(t *testing.T, tchr teacher.Teacher, date core.Date, period int, attended bool) schedule.ScheduledClass {
	t.Helper()
	app.rooms++
	room := testutil.CreateClassroom(t, app.repos.Classrooms, "C", app.rooms)
	return testutil.CreateClass(t, app.ledger, tchr, room, date, period, attended)
}

func (app *testApp) token(t *testing.T, tchr teacher.Teacher) string {
	t.Helper()
	token, err := app.IssueToken(tchr)
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

func (app *testApp) fetchTeacher(t *testing.T, id int) teacher.Teacher {
	t.Helper()
	tchr, err := app.repos.Teachers.GetTeacher(ctx, id)
	require.NoError(t, err)
	return tchr
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
