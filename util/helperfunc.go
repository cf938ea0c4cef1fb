package util

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every handler answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Msg     string      `json:"msg"`
	Data    interface{} `json:"data"`
}

type APIErrorParams struct {
	Msg string
	Err error
}

type APISuccessParams struct {
	Msg  string
	Data interface{}
}

// Contains reports whether d is one of dl.
func Contains(d string, dl []string) bool {
	for _, v := range dl {
		if v == d {
			return true
		}
	}
	return false
}

func emptyData() map[string]interface{} { return map[string]interface{}{} }

func writeFailure(c *gin.Context, status int, params APIErrorParams, data interface{}) {
	errText := ""
	if params.Err != nil {
		errText = params.Err.Error()
	}
	c.JSON(status, APIResponse{Error: errText, Msg: params.Msg, Data: data})
}

func writeSuccess(c *gin.Context, status int, params APISuccessParams) {
	c.JSON(status, APIResponse{Success: true, Msg: params.Msg, Data: params.Data})
}

// CallErrorNotFound answers 404.
func CallErrorNotFound(c *gin.Context, params APIErrorParams) {
	writeFailure(c, http.StatusNotFound, params, emptyData())
}

// CallUserError answers 400 for a request the caller got wrong.
func CallUserError(c *gin.Context, params APIErrorParams) {
	writeFailure(c, http.StatusBadRequest, params, emptyData())
}

// CallServerError answers 500. Err should already be stripped of internals.
func CallServerError(c *gin.Context, params APIErrorParams) {
	writeFailure(c, http.StatusInternalServerError, params, emptyData())
}

// CallSuccessOK answers 200 with params.Data.
func CallSuccessOK(c *gin.Context, params APISuccessParams) {
	writeSuccess(c, http.StatusOK, params)
}

// CallCreated answers 201 after a record is inserted.
func CallCreated(c *gin.Context, params APISuccessParams) {
	writeSuccess(c, http.StatusCreated, params)
}

// CallUserNotAuthorized answers 401 with a null data field.
func CallUserNotAuthorized(c *gin.Context, params APIErrorParams) {
	writeFailure(c, http.StatusUnauthorized, params, nil)
}

// CallForbidden answers 403 when the caller lacks the required role.
func CallForbidden(c *gin.Context, params APIErrorParams) {
	writeFailure(c, http.StatusForbidden, params, emptyData())
}

// CallTooManyRequests answers 429. A positive retryAfter is sent as whole
// seconds in the Retry-After header.
func CallTooManyRequests(c *gin.Context, params APIErrorParams, retryAfter time.Duration) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)))
	}
	writeFailure(c, http.StatusTooManyRequests, params, emptyData())
}

// CallValidationError answers 400 with data.errors holding the messages per field.
func CallValidationError(c *gin.Context, params APIErrorParams, fieldErrors map[string][]string) {
	writeFailure(c, http.StatusBadRequest, params, map[string]interface{}{"errors": fieldErrors})
}

// NormalizeName trims a name and collapses internal whitespace runs to a
// single space, so "  Budi   Santoso " and "Budi Santoso" compare equal.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
