package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedInUsername(t *testing.T) {
	st := storetest.New(t)
	u := &models.User{Email: "a@x.com"}
	require.NoError(t, st.CreateUser(context.Background(), u))

	h := NewHandler(st, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api", func(c *gin.Context) { c.Set(auth.ContextKeyUserID, u.ID) })
	g.GET("/settings/linkedin", h.GetLinkedIn)
	g.PUT("/settings/linkedin", h.PutLinkedIn)

	do := func(method, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, "/api/settings/linkedin", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var m map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &m)
		return w.Code, m
	}

	code, body := do(http.MethodGet, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "", body["username"])

	code, body = do(http.MethodPut, `{"username":"https://www.linkedin.com/in/jane-doe/"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "jane-doe", body["username"])

	code, body = do(http.MethodGet, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "jane-doe", body["username"])

	code, _ = do(http.MethodPut, `{"username":"<script>"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValidateLinkedIn(t *testing.T) {
	assert.NoError(t, validateLinkedIn(map[string]interface{}{"username": "jane-doe"}))
	assert.Error(t, validateLinkedIn(map[string]interface{}{"username": "ab"}))
	assert.Error(t, validateLinkedIn(map[string]interface{}{"username": "has space"}))
	assert.Error(t, validateLinkedIn(map[string]interface{}{}))
}
