package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/metrics"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
	"github.com/trezcool/mahudhurio/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

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

func newConfig() *core.Config {
	conf := &core.Config{AppName: "Mahudhurio", SecretKey: "secret", TestMode: true}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.DisableReqLogs = true
	return conf
}

// setup returns an API server backed by an in-memory database seeded with AliceAndBob.
func setup(t *testing.T) (*echoapi.Server, *core.Config) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := newConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	m := metrics.New()

	students := dummydb.NewRosterRepository(db)
	testutil.SeedRoster(t, students, testutil.AliceAndBob())

	leaveSvc := leave.NewService(dummydb.NewLeaveRepository(db), students, validate, translator)
	notifSvc := notification.NewService(dummydb.NewNotificationRepository(db), logger, m)
	attendanceSvc := attendance.NewService(
		dummydb.NewSessionRepository(db), dummydb.NewLedgerRepository(db), students, leaveSvc, notifSvc, logger,
	)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		LeaveSvc:        leaveSvc,
		AttendanceSvc:   attendanceSvc,
		NotificationSvc: notifSvc,
		Metrics:         m,
		Validate:        validate,
		Translator:      translator,
	})
	return server, conf
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

func getToken(t *testing.T, usr user.User, conf *core.Config) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, conf), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

// do serves a request and decodes the JSON response into out, when given.
func do(t *testing.T, app http.Handler, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var data []byte
	if body != nil {
		data = marshallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return bytes.Equal(marshallSorted(j1), marshallSorted(j2)), nil
}

// marshallSorted re-encodes decoded JSON, with sorted object keys.
func marshallSorted(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
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
