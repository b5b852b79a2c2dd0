package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var errQuota = errcode.New(99, 7, "test", "error.test.quota", "quota exhausted", http.StatusTooManyRequests)

type greetRequest struct {
	ID    string `uri:"id" json:"-"`
	Lang  string `form:"lang" json:"lang"`
	Count int    `json:"count"`
}

func (r *greetRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Lang, validation.Required, validation.In("en", "zh")),
		validation.Field(&r.Count, validation.Min(0), validation.Max(3)),
	)
}

type greetResponse struct {
	Text string `json:"text"`
}

func greet(_ *gin.Context, req *greetRequest) (*greetResponse, error) {
	switch req.ID {
	case "quota":
		return nil, errQuota.WithData("resource", req.ID)
	case "boom":
		return nil, errors.New("disk on fire")
	}
	return &greetResponse{Text: strings.Repeat(req.Lang+":"+req.ID+" ", req.Count)}, nil
}

func newRouter(logging *ErrorLoggingConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if logging != nil {
		r.Use(ErrorLoggingMiddleware(*logging))
	}
	r.POST("/greet/:id", Wrap(greet))
	r.NoRoute(NoRouteHandler())
	r.NoMethod(NoMethodHandler())
	r.HandleMethodNotAllowed = true
	return r
}

func call(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestWrap_Success(t *testing.T) {
	w, resp := call(newRouter(nil), http.MethodPost, "/greet/alice?lang=en", `{"count":2}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, resp["code"])
	assert.Equal(t, "success", resp["msg"])
	assert.Equal(t, map[string]interface{}{"text": "en:alice en:alice "}, resp["data"])
}

func TestWrap_EmptyBody(t *testing.T) {
	w, resp := call(newRouter(nil), http.MethodPost, "/greet/bob?lang=zh", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"text": ""}, resp["data"])
}

func TestWrap_Validation(t *testing.T) {
	w, resp := call(newRouter(nil), http.MethodPost, "/greet/alice?lang=fr", `{"count":9}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, ErrValidation.Code(), resp["code"])
	data := resp["data"].(map[string]interface{})
	fields := data["fields"].(map[string]interface{})
	assert.Contains(t, fields, "lang")
	assert.Contains(t, fields, "count")
}

func TestWrap_BadJSON(t *testing.T) {
	w, resp := call(newRouter(nil), http.MethodPost, "/greet/alice?lang=en", `{"count":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, ErrBadRequest.Code(), resp["code"])
	assert.NotEqual(t, "bad request", resp["msg"])
}

func TestHandleError(t *testing.T) {
	r := newRouter(nil)

	w, resp := call(r, http.MethodPost, "/greet/quota?lang=en", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.EqualValues(t, errQuota.Code(), resp["code"])
	assert.Equal(t, map[string]interface{}{"resource": "quota"}, resp["data"])

	w, resp = call(r, http.MethodPost, "/greet/boom?lang=en", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, ErrInternal.Code(), resp["code"])
	assert.Equal(t, "internal error", resp["msg"])
}

func TestHandleError_Logging(t *testing.T) {
	m, logs := logger.NewObservedManager(zapcore.DebugLevel)
	previous := logger.SetManager(m)
	t.Cleanup(func() { logger.SetManager(previous) })

	cfg := DefaultErrorLoggingConfig()
	cfg.Enable = true
	cfg.IgnoreHTTPStatus = []int{http.StatusTooManyRequests}
	cfg.LogLevel = "warn"
	r := newRouter(&cfg)

	call(r, http.MethodPost, "/greet/quota?lang=en", "")
	assert.Equal(t, 0, logs.Len())

	call(r, http.MethodPost, "/greet/boom?lang=en", "")
	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/greet/boom", fields["path"])
	assert.Contains(t, fields["error"], "disk on fire")
}

func TestHandleError_LoggingDisabled(t *testing.T) {
	m, logs := logger.NewObservedManager(zapcore.DebugLevel)
	previous := logger.SetManager(m)
	t.Cleanup(func() { logger.SetManager(previous) })

	call(newRouter(nil), http.MethodPost, "/greet/boom?lang=en", "")
	assert.Equal(t, 0, logs.Len())
}

func TestNoRouteAndNoMethod(t *testing.T) {
	r := newRouter(nil)

	w, resp := call(r, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, resp["msg"], "/missing")

	w, _ = call(r, http.MethodGet, "/greet/alice", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
