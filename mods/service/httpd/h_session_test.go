package httpd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := New()
	require.NoError(t, err)
	return svc.(*httpd).Router()
}

func do(router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	rsp := map[string]any{}
	json.Unmarshal(w.Body.Bytes(), &rsp)
	return w, rsp
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w, rsp := do(router, http.MethodPost, "/web/api/sessions",
		`{"priorMean":[0,0],"priorCov":[[0.5,0],[0,0.5]],"noisePrecision":25}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode, w.Body.String())
	require.Equal(t, true, rsp["success"])
	id, ok := rsp["id"].(string)
	require.True(t, ok)
	return id
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	// posterior equals the prior right after creation
	w, rsp := do(router, http.MethodGet, "/web/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, []any{0.0, 0.0}, rsp["mean"])
	require.Equal(t, 25.0, rsp["noisePrecision"])

	// single noiseless observation pulls the fit toward the point
	w, rsp = do(router, http.MethodPost, fmt.Sprintf("/web/api/sessions/%s/update", id),
		`{"x":[0.5],"t":[-0.05]}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode, w.Body.String())
	mean := rsp["mean"].([]any)
	require.InDelta(t, -2.5/66.5, mean[0].(float64), 1e-9)
	require.InDelta(t, -1.25/66.5, mean[1].(float64), 1e-9)

	w, rsp = do(router, http.MethodPost, fmt.Sprintf("/web/api/sessions/%s/bounds", id),
		`{"x":[0,0.5,1],"numStdevs":1}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Len(t, rsp["bounds"], 3)

	w, rsp = do(router, http.MethodPost, fmt.Sprintf("/web/api/sessions/%s/sample", id),
		`{"count":5}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Len(t, rsp["weights"], 5)

	w, rsp = do(router, http.MethodPost, fmt.Sprintf("/web/api/sessions/%s/generate", id),
		`{"x":[-1,0,1]}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Len(t, rsp["t"], 3)

	w, _ = do(router, http.MethodDelete, "/web/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	w, _ = do(router, http.MethodGet, "/web/api/sessions/"+id, "")
	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestCreateSessionValidation(t *testing.T) {
	router := newTestRouter(t)

	for _, tc := range []struct {
		name string
		body string
	}{
		{"wrong mean length", `{"priorMean":[0],"priorCov":[[0.5,0],[0,0.5]],"noisePrecision":25}`},
		{"wrong cov shape", `{"priorMean":[0,0],"priorCov":[[0.5,0]],"noisePrecision":25}`},
		{"asymmetric cov", `{"priorMean":[0,0],"priorCov":[[0.5,0.1],[0.2,0.5]],"noisePrecision":25}`},
		{"non positive definite", `{"priorMean":[0,0],"priorCov":[[1,2],[2,1]],"noisePrecision":25}`},
		{"zero noise precision", `{"priorMean":[0,0],"priorCov":[[0.5,0],[0,0.5]],"noisePrecision":0}`},
	} {
		w, rsp := do(router, http.MethodPost, "/web/api/sessions", tc.body)
		require.Equal(t, http.StatusBadRequest, w.Result().StatusCode, tc.name)
		require.Equal(t, false, rsp["success"], tc.name)
	}
}

func TestUpdateValidation(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	w, rsp := do(router, http.MethodPost, fmt.Sprintf("/web/api/sessions/%s/update", id),
		`{"x":[1,2],"t":[1]}`)
	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	require.Equal(t, false, rsp["success"])

	// empty batch is a legal no-op
	w, rsp = do(router, http.MethodPost, fmt.Sprintf("/web/api/sessions/%s/update", id),
		`{"x":[],"t":[]}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, []any{0.0, 0.0}, rsp["mean"])
}

func TestUnknownSession(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{
		"/web/api/sessions/no-such-id/update",
		"/web/api/sessions/no-such-id/bounds",
		"/web/api/sessions/no-such-id/sample",
		"/web/api/sessions/no-such-id/generate",
	} {
		w, rsp := do(router, http.MethodPost, path, `{}`)
		require.Equal(t, http.StatusNotFound, w.Result().StatusCode, path)
		require.Equal(t, "session not found", rsp["reason"], path)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	w, rsp := do(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, true, rsp["success"])
}
