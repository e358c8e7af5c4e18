package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rankkings/internal/domain/user/model"
	"rankkings/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	user *model.User
}

func (f *fakeSession) CurrentUser() *model.User { return f.user }

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("No session", func(t *testing.T) {
		w := do(newRouter(AuthMiddleware(&fakeSession{})))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Signed in", func(t *testing.T) {
		w := do(newRouter(AuthMiddleware(&fakeSession{user: &model.User{ID: 5}})))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":5}`, w.Body.String())
	})

	t.Run("Admin required", func(t *testing.T) {
		w := do(newRouter(AuthMiddleware(&fakeSession{user: &model.User{ID: 5}}), AdminMiddleware()))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = do(newRouter(AuthMiddleware(&fakeSession{user: &model.User{ID: 1, Role: model.RoleAdmin}}), AdminMiddleware()))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newRouter(RateLimitMiddleware(1, 2))

	assert.Equal(t, http.StatusOK, do(r).Code)
	assert.Equal(t, http.StatusOK, do(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r).Code)
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsCollector(reg)
	r := newRouter()
	r.Use(MetricsMiddleware(m))
	r.GET("/y", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/y", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "rankkings_http_requests_total"))
}

func TestTraceMiddleware(t *testing.T) {
	r := newRouter(TraceMiddleware(), LoggerMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderTraceID, "trace-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-1", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
