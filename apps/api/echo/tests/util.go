package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/eduva/eduva/apps/api/echo"
	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
	emailsvc "github.com/eduva/eduva/services/email"
	sqlxrepos "github.com/eduva/eduva/storage/database/sqlx"
	"github.com/eduva/eduva/tests"
)

var (
	conf    = testutil.NewConfig()
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleService

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func setup(t *testing.T) *Server {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewCredentialRepository(db)

	// set up services
	var usrSvc *user.Service
	usrSvc, mailSvc = testutil.NewUserService(t, usrRepo, conf)

	return newServer(t, conf, usrSvc)
}

func newServer(t *testing.T, conf *core.Config, usrSvc UserService) *Server {
	validate, translator := testutil.NewValidator(conf)
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testutil.NewLogger(conf),
		UserSvc:    usrSvc,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

type httpErr struct {
	Error string `json:"error"`
}

type authErr struct {
	Error  string            `json:"error"`
	Code   user.ErrorKind    `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
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

func getToken(t *testing.T, usr user.AuthUser) string {
	token, err := GenerateToken(GetUserClaims(usr, conf), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
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
	assert.Equal(t, tt.wantCode, rec.Code, "status code")
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
