package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go-crisislens/handlers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(&handlers.Handler{Logger: zap.NewNop()})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodDelete, "/api/crisis/rec-1", http.StatusBadRequest},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
