package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/", handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRespondWithSuccess(t *testing.T) {
	w := serve(func(c *gin.Context) { RespondWithSuccess(c, gin.H{"id": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","data":{"id":1}}`, w.Body.String())

	w = serve(func(c *gin.Context) { RespondWithCreated(c, gin.H{"id": 2}) })
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRespondWithError(t *testing.T) {
	w := serve(func(c *gin.Context) { RespondWithError(c, apperrors.Conflict("this time slot is already booked", nil)) })
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "this time slot is already booked", resp.Message)

	w = serve(func(c *gin.Context) { RespondWithError(c, errors.New("pq: password authentication failed")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Message)
}
