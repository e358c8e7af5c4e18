package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rankkings/internal/domain/user/model"
	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/middleware"
	"rankkings/internal/pkg/remote"
	"rankkings/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserService is a mock of service.UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetProfile(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserService) ListDirectory(ctx context.Context) ([]remote.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]remote.User), args.Error(1)
}

func (m *MockUserService) GetDirectoryUser(ctx context.Context, id uint) (*remote.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.User), args.Error(1)
}

func (m *MockUserService) CreateDirectoryUser(ctx context.Context, u remote.User) (*remote.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.User), args.Error(1)
}

func (m *MockUserService) ReplaceDirectoryUser(ctx context.Context, id uint, u remote.User) (*remote.User, error) {
	args := m.Called(ctx, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.User), args.Error(1)
}

func (m *MockUserService) PatchDirectoryUser(ctx context.Context, id uint, u remote.User) (*remote.User, error) {
	args := m.Called(ctx, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.User), args.Error(1)
}

func (m *MockUserService) DeleteDirectoryUser(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProfileEditor is a mock of ProfileEditor
type MockProfileEditor struct {
	mock.Mock
	user *model.User
}

func (m *MockProfileEditor) CurrentUser() *model.User { return m.user }

func (m *MockProfileEditor) UpdateInterests(ctx context.Context, interests []string) (*model.User, error) {
	args := m.Called(ctx, interests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockProfileEditor) UpdateProfileImage(ctx context.Context, uri string) (*model.User, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func newTestRouter(svc *MockUserService, profile *MockProfileEditor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewUserHandler(svc, profile)
	r := gin.New()
	auth := middleware.AuthMiddleware(profile)

	r.GET("/users/me", auth, h.GetMe)
	r.PUT("/users/me/interests", auth, h.UpdateInterests)
	r.PUT("/users/me/avatar", auth, h.UpdateAvatar)
	r.GET("/directory/users", auth, h.ListDirectory)
	r.GET("/directory/users/:id", auth, h.GetDirectoryUser)
	r.PATCH("/directory/users/:id", auth, middleware.AdminMiddleware(), h.PatchDirectoryUser)
	r.DELETE("/directory/users/:id", auth, middleware.AdminMiddleware(), h.DeleteDirectoryUser)
	return r
}

func request(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestProfileEndpoints(t *testing.T) {
	t.Run("Not signed in", func(t *testing.T) {
		r := newTestRouter(new(MockUserService), &MockProfileEditor{})
		w := request(r, http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GetMe", func(t *testing.T) {
		svc := new(MockUserService)
		profile := &MockProfileEditor{user: &model.User{ID: 5}}
		svc.On("GetProfile", mock.Anything, uint(5)).Return(&model.User{ID: 5, Name: "Ana"}, nil)

		w := request(newTestRouter(svc, profile), http.MethodGet, "/users/me", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Ana"`)
		svc.AssertExpectations(t)
	})

	t.Run("UpdateInterests", func(t *testing.T) {
		profile := &MockProfileEditor{user: &model.User{ID: 5}}
		profile.On("UpdateInterests", mock.Anything, []string{"jazz", "rock"}).
			Return(&model.User{ID: 5, Interests: model.StringList{"jazz", "rock"}}, nil)

		w := request(newTestRouter(new(MockUserService), profile), http.MethodPut, "/users/me/interests",
			InterestsInput{Interests: []string{"jazz", "rock"}})
		require.Equal(t, http.StatusOK, w.Code)
		profile.AssertExpectations(t)
	})

	t.Run("UpdateAvatar clears", func(t *testing.T) {
		profile := &MockProfileEditor{user: &model.User{ID: 5}}
		profile.On("UpdateProfileImage", mock.Anything, "").Return(&model.User{ID: 5}, nil)

		w := request(newTestRouter(new(MockUserService), profile), http.MethodPut, "/users/me/avatar", AvatarInput{})
		require.Equal(t, http.StatusOK, w.Code)
		profile.AssertExpectations(t)
	})
}

func TestDirectoryEndpoints(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("ListDirectory", mock.Anything).Return([]remote.User{{ID: 1, Name: "Ana"}}, nil)

		w := request(newTestRouter(svc, &MockProfileEditor{user: &model.User{ID: 5}}), http.MethodGet, "/directory/users", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, response.CodeSuccess, decode(t, w).Code)
	})

	t.Run("List paged", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("ListDirectory", mock.Anything).
			Return([]remote.User{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Ben"}, {ID: 3, Name: "Cy"}}, nil)

		w := request(newTestRouter(svc, &MockProfileEditor{user: &model.User{ID: 5}}), http.MethodGet, "/directory/users?page=2&limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data, ok := decode(t, w).Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(3), data["total"])
		list, ok := data["list"].([]interface{})
		require.True(t, ok)
		require.Len(t, list, 1)
		assert.Equal(t, "Cy", list[0].(map[string]interface{})["name"])
	})

	t.Run("Bad pagination", func(t *testing.T) {
		w := request(newTestRouter(new(MockUserService), &MockProfileEditor{user: &model.User{ID: 5}}), http.MethodGet, "/directory/users?page=x", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Remote not found", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("GetDirectoryUser", mock.Anything, uint(9)).
			Return(nil, &apperr.RemoteError{Status: 404, Message: "Not Found."})

		w := request(newTestRouter(svc, &MockProfileEditor{user: &model.User{ID: 5}}), http.MethodGet, "/directory/users/9", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Not Found.", decode(t, w).Message)
	})

	t.Run("Invalid id", func(t *testing.T) {
		w := request(newTestRouter(new(MockUserService), &MockProfileEditor{user: &model.User{ID: 5}}), http.MethodGet, "/directory/users/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Writes need admin", func(t *testing.T) {
		svc := new(MockUserService)
		w := request(newTestRouter(svc, &MockProfileEditor{user: &model.User{ID: 5}}), http.MethodDelete, "/directory/users/3", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		svc.AssertNotCalled(t, "DeleteDirectoryUser", mock.Anything, mock.Anything)
	})

	t.Run("Admin patch", func(t *testing.T) {
		svc := new(MockUserService)
		admin := &MockProfileEditor{user: &model.User{ID: 1, Role: model.RoleAdmin}}
		svc.On("PatchDirectoryUser", mock.Anything, uint(3), remote.User{Name: "Bo"}).
			Return(&remote.User{ID: 3, Name: "Bo"}, nil)

		w := request(newTestRouter(svc, admin), http.MethodPatch, "/directory/users/3", DirectoryUserInput{Name: "Bo"})
		require.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}
