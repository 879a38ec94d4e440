package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"execsvc/pkg/errors"
	"execsvc/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/execute", nil)
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestSuccessWritesDataWithoutEnvelope(t *testing.T) {
	c, w := newContext()
	Success(c, map[string]int{"returncode": 0})
	if w.Code != http.StatusOK || w.Body.String() != `{"returncode":0}` {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestErrorShapes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{
			name:   "message",
			err:    errors.InvalidJSON(),
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["error"] != "invalid JSON request format" {
					t.Fatalf("error = %v", body["error"])
				}
			},
		},
		{
			name:   "fields",
			err:    errors.New(errors.ValidationFailed).WithField("timeout", "Not a valid integer."),
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				fields, ok := body["error"].(map[string]interface{})
				if !ok {
					t.Fatalf("error should be a field map: %v", body["error"])
				}
				msgs, _ := fields["timeout"].([]interface{})
				if len(msgs) != 1 || msgs[0] != "Not a valid integer." {
					t.Fatalf("timeout messages = %v", fields["timeout"])
				}
			},
		},
		{
			name:   "plain error is internal",
			err:    stderrors.New("boom"),
			status: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				if _, ok := body["error"].(string); !ok {
					t.Fatalf("error should be a string: %v", body["error"])
				}
			},
		},
		{
			name:   "busy",
			err:    errors.New(errors.ExecutorBusy),
			status: http.StatusServiceUnavailable,
			check:  func(*testing.T, map[string]interface{}) {},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newContext()
			Error(c, tc.err)
			if w.Code != tc.status {
				t.Fatalf("status = %d", w.Code)
			}
			tc.check(t, decodeBody(t, w))
		})
	}
}

func TestAbortWithError(t *testing.T) {
	c, w := newContext()
	AbortWithError(c, errors.New(errors.TooManyRequests))
	if !c.IsAborted() || w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected aborted 429, got %d aborted=%v", w.Code, c.IsAborted())
	}
	if body := decodeBody(t, w); body["error"] != errors.TooManyRequests.Message() {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestErrorLogsDetails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetGlobal(logger.NewWithZap(zap.New(core)))
	t.Cleanup(func() { logger.SetGlobal(nil) })

	c, w := newContext()
	Error(c, errors.New(errors.ExecutorBusy).WithDetail("pool_size", 2))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	entries := logs.FilterMessage("request error").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %d", len(entries))
	}
	details, ok := entries[0].ContextMap()["details"].(map[string]interface{})
	if !ok || details["pool_size"] != 2 {
		t.Fatalf("details not logged: %v", entries[0].ContextMap())
	}
	if body := decodeBody(t, w); body["error"] != errors.ExecutorBusy.Message() {
		t.Fatalf("details must not leak into the body: %v", body)
	}
}
