package endpoint_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariebrainware/realty-leads/config"
	"github.com/ariebrainware/realty-leads/endpoint"
	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type apiResp struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// requestParams groups HTTP request parameters to reduce function arguments
type requestParams struct {
	method  string
	path    string
	body     []byte
	headers  map[string]string
	remoteIP string
}

// testClientIP is the address every request in these tests comes from.
const testClientIP = "192.0.2.1"

func doRequest(r http.Handler, params requestParams) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(params.method, params.path, bytes.NewReader(params.body))
	ip := params.remoteIP
	if ip == "" {
		ip = testClientIP
	}
	req.RemoteAddr = ip + ":1234"
	req.Header.Set("Content-Type", "application/json")
	for k, v := range params.headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr, nil
}

// sendFrom is send with the request arriving from ip.
func sendFrom(t *testing.T, r http.Handler, ip, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	rr, err := doRequest(r, requestParams{method: method, path: path, body: b, remoteIP: ip})
	if err != nil {
		t.Fatalf("%s %s request failed: %v", method, path, err)
	}
	return rr
}

// send marshals body (when non-nil) and performs the request, failing the test on error.
func send(t *testing.T, r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var b []byte
	if body != nil {
		var err error
		if b, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	headers := map[string]string{}
	if token != "" {
		headers[middleware.SessionTokenHeader] = token
	}
	rr, err := doRequest(r, requestParams{method: method, path: path, body: b, headers: headers})
	if err != nil {
		t.Fatalf("%s %s request failed: %v", method, path, err)
	}
	return rr
}

// setupTestDB connects the in-memory database, migrates every model and seeds roles.
// Tables are dropped when the test ends.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.ConnectMySQL()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Migrator().DropTable(model.AllModels()...); err != nil {
			t.Errorf("failed to drop tables during cleanup: %v", err)
		}
	})
	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

// SetupTestServer builds the full router over a fresh database. Each server gets its own
// rate limiter and security monitor.
func SetupTestServer(t *testing.T) (*gin.Engine, *gorm.DB, *middleware.Security) {
	t.Helper()
	db := setupTestDB(t)
	sec := middleware.NewSecurity(util.NewRateLimiter(nil), util.NewSecurityMonitor(util.MonitorOptions{DB: db}))
	r := endpoint.SetupRouter(endpoint.Deps{
		AppName:     "realty-leads",
		DB:          db,
		Security:    sec,
		MapboxToken: "pk.test-token",
	})
	return r, db, sec
}

type SignupCreds struct {
	Name     string
	Email    string
	Password string
}

// CreateAndLoginUser signs up and logs in a user, returning session token and user id.
func CreateAndLoginUser(t *testing.T, r http.Handler, creds SignupCreds) (string, uint) {
	t.Helper()
	rr := send(t, r, http.MethodPost, "/signup", map[string]string{
		"name": creds.Name, "email": creds.Email, "password": creds.Password,
	}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup %s returned non-201: %d %s", creds.Email, rr.Code, rr.Body.String())
	}
	return LoginUser(t, r, creds.Email, creds.Password)
}

// LoginUser logs in and returns the session token and user id.
func LoginUser(t *testing.T, r http.Handler, email, password string) (string, uint) {
	t.Helper()
	rr := send(t, r, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s returned non-200: %d %s", email, rr.Code, rr.Body.String())
	}
	var data struct {
		Token  string `json:"token"`
		Role   string `json:"role"`
		UserID uint   `json:"user_id"`
	}
	if err := json.Unmarshal(ParseAPIResp(t, rr).Data, &data); err != nil {
		t.Fatalf("parse login data failed: %v", err)
	}
	return data.Token, data.UserID
}

// SetupServerWithAdmin returns a server and the session token of its first admin,
// promoted through bootstrap_admin.
func SetupServerWithAdmin(t *testing.T) (*gin.Engine, *gorm.DB, string) {
	t.Helper()
	r, db, _ := SetupTestServer(t)
	token, _ := CreateAndLoginUser(t, r, SignupCreds{Name: "Admin User", Email: "admin@example.com", Password: "adminpass"})
	rr := send(t, r, http.MethodPost, "/rpc/bootstrap_admin", nil, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("bootstrap_admin returned non-200: %d %s", rr.Code, rr.Body.String())
	}
	return r, db, token
}

// ParseAPIResp decodes a standard API response from a ResponseRecorder.
func ParseAPIResp(t *testing.T, rr *httptest.ResponseRecorder) apiResp {
	t.Helper()
	var resp apiResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

// ParseDataToMap unmarshals an API response Data field into a map[string]interface{}.
func ParseDataToMap(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("parse data failed: %v", err)
	}
	return data
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(ParseAPIResp(t, rr).Data, dst); err != nil {
		t.Fatalf("decode data failed: %v; body: %s", err, rr.Body.String())
	}
}

// AssertTotal asserts the `total` field in list response data.
func AssertTotal(t *testing.T, data map[string]interface{}, want int) {
	t.Helper()
	got := int(data["total"].(float64))
	if got != want {
		t.Errorf("expected total %d, got %d", want, got)
	}
}

// AssertTotalFetched asserts the `total_fetched` field in list response data.
func AssertTotalFetched(t *testing.T, data map[string]interface{}, want int) {
	t.Helper()
	got := int(data["total_fetched"].(float64))
	if got != want {
		t.Errorf("expected total_fetched %d, got %d", want, got)
	}
}

func seedProperty(t *testing.T, db *gorm.DB, p model.Property) model.Property {
	t.Helper()
	if p.Status == "" {
		p.Status = model.PropertyAvailable
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return p
}
