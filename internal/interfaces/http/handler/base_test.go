package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
	m.Run()
}

// newRouter returns an engine that carries the request ID and identity middleware
func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity(middleware.IdentityConfig{}))
	return r
}

func serve(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"shared not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped not found", fmt.Errorf("find order: %w", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"invalid input", shared.ErrInvalidInput, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"domain transition", shared.NewDomainError("CANNOT_CHANGE_STATUS", "no"), http.StatusUnprocessableEntity, "CANNOT_CHANGE_STATUS"},
		{"missing document", fmt.Errorf("get: %w", integration.ErrDocumentNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"remote failure", fmt.Errorf("erp: %w", integration.ErrRequestFailed), http.StatusBadGateway, dto.ErrCodeUnavailable},
		{"remote not configured", integration.ErrNotConfigured, http.StatusBadGateway, dto.ErrCodeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			r := newRouter()
			r.GET("/", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := serve(r, http.MethodGet, "/", "", middleware.RequestIDHeader, "req-1")

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleError_KeepsDetails(t *testing.T) {
	h := &BaseHandler{}
	r := newRouter()
	r.GET("/", func(c *gin.Context) {
		h.HandleError(c, shared.ErrInvalidState.WithDetails(map[string]any{"from": 1, "to": 3}))
	})

	w := serve(r, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	assert.EqualValues(t, 1, resp.Error.Details["from"])
	assert.EqualValues(t, 3, resp.Error.Details["to"])
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	h := &BaseHandler{}
	r := newRouter()
	r.GET("/", func(c *gin.Context) {
		h.HandleError(c, nil)
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBaseHandler_PathID(t *testing.T) {
	h := &BaseHandler{}
	r := newRouter()
	r.GET("/orders/:id", func(c *gin.Context) {
		id, ok := h.PathID(c)
		if !ok {
			return
		}
		h.Success(c, id.String())
	})

	t.Run("valid", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/orders/6ba7b810-9dad-11d1-80b4-00c04fd430c8", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", decode(t, w).Data)
	})

	t.Run("invalid", func(t *testing.T) {
		w := serve(r, http.MethodGet, "/orders/42", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decode(t, w).Error.Code)
	})
}

func TestBaseHandler_BindJSON(t *testing.T) {
	type body struct {
		Name string `json:"name" binding:"required"`
	}
	h := &BaseHandler{}
	r := newRouter()
	r.POST("/", func(c *gin.Context) {
		var req body
		if !h.BindJSON(c, &req) {
			return
		}
		h.Created(c, req)
	})

	t.Run("valid", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/", `{"name":"rack"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("missing field", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		require.Len(t, resp.Error.Fields, 1)
		assert.Equal(t, "name", resp.Error.Fields[0].Field)
	})

	t.Run("malformed", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
	})
}
