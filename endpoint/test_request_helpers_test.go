package endpoint

import (
	"encoding/json"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
)

// routeRequest mounts handler at registerPath and requests requestPath against it.
type routeRequest struct {
	method       string
	registerPath string
	requestPath  string
	handler      gin.HandlerFunc
	body         string
}

// doRequestWithHandler serves one request and decodes the JSON envelope when present.
func doRequestWithHandler(r *gin.Engine, rs routeRequest) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	r.Handle(rs.method, rs.registerPath, rs.handler)

	req := httptest.NewRequest(rs.method, rs.requestPath, strings.NewReader(rs.body))
	if rs.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.Len() == 0 {
		return w, nil, nil
	}
	var envelope map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	return w, envelope, err
}
