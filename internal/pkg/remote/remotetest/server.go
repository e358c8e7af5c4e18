// Package remotetest 提供内存版的远端后端，供各包测试使用
package remotetest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"rankkings/internal/pkg/config"
	"rankkings/internal/pkg/remote"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AuthPrefix = "/auth-api"
	APIPrefix  = "/data-api"
)

var signingKey = []byte("remotetest-signing-key-0123456789abcdef")

type account struct {
	remote.User
	Password string
}

type failure struct {
	status  int
	message string
}

// Server 内存后端
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextUser  uint
	nextPost  uint
	accounts  map[uint]*account
	posts     []remote.Post
	calls     map[string]int
	failures  map[string]failure
	authHdrs  map[string]string
	tokenTTL  time.Duration
	useAltKey bool // 登录响应使用 user_id 字段
}

// NewServer 启动后端，测试结束时调用 Close
func NewServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		nextUser: 1,
		nextPost: 1,
		accounts: make(map[uint]*account),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		authHdrs: make(map[string]string),
		tokenTTL: time.Hour,
	}

	r := gin.New()
	r.Use(s.track)

	auth := r.Group(AuthPrefix + "/auth")
	auth.POST("/login", s.login)
	auth.POST("/signup", s.signup)
	auth.GET("/me", s.me)

	api := r.Group(APIPrefix)
	api.GET("/post", s.listPosts)
	api.POST("/post", s.createPost)
	api.GET("/user", s.listUsers)
	api.POST("/user", s.createUser)
	api.GET("/user/:id", s.getUser)
	api.PUT("/user/:id", s.updateUser)
	api.PATCH("/user/:id", s.updateUser)
	api.DELETE("/user/:id", s.deleteUser)

	s.Server = httptest.NewServer(r)
	return s
}

// RemoteConfig 指向本服务的客户端配置
func (s *Server) RemoteConfig() config.RemoteConfig {
	return config.RemoteConfig{
		AuthBaseURL: s.URL + AuthPrefix,
		APIBaseURL:  s.URL + APIPrefix,
		Timeout:     5 * time.Second,
	}
}

// AddAccount 预置账号，返回用户 ID
func (s *Server) AddAccount(name, email, password string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(name, email, password)
}

// SetAccountID 预置指定 ID 的账号
func (s *Server) SetAccountID(id uint, name, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = &account{User: remote.User{ID: id, Name: name, Email: email}, Password: password}
	if id >= s.nextUser {
		s.nextUser = id + 1
	}
}

// AddPost 预置远端动态
func (s *Server) AddPost(p remote.Post) remote.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextPost
	s.nextPost++
	s.posts = append(s.posts, p)
	return p
}

// Posts 远端动态快照
func (s *Server) Posts() []remote.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.Post(nil), s.posts...)
}

// Fail 令下一次访问 path 的请求返回 status
func (s *Server) Fail(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, message: message}
}

// Calls 某路径被调用的次数
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastAuthorization 某路径最后一次收到的 Authorization 头
func (s *Server) LastAuthorization(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authHdrs[path]
}

// UseAltKey 登录响应改用 user_id 字段
func (s *Server) UseAltKey(alt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useAltKey = alt
}

// SetTokenTTL 之后签发的令牌有效期
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// IssueToken 为用户签发令牌
func (s *Server) IssueToken(userID uint, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	return token
}

func (s *Server) addAccountLocked(name, email, password string) uint {
	id := s.nextUser
	s.nextUser++
	s.accounts[id] = &account{User: remote.User{ID: id, Name: name, Email: email}, Password: password}
	return id
}

func (s *Server) track(c *gin.Context) {
	path := c.Request.URL.Path
	path = strings.TrimPrefix(strings.TrimPrefix(path, AuthPrefix), APIPrefix)

	s.mu.Lock()
	s.calls[path]++
	s.authHdrs[path] = c.GetHeader("Authorization")
	f, failing := s.failures[path]
	if failing {
		delete(s.failures, path)
	}
	s.mu.Unlock()

	if failing {
		c.AbortWithStatusJSON(f.status, gin.H{"code": "ERROR", "message": f.message})
		return
	}
	c.Next()
}

func (s *Server) authenticate(c *gin.Context) (*account, bool) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "ERROR_CODE_UNAUTHORIZED", "message": "Invalid token"})
		return nil, false
	}
	id, _ := strconv.ParseUint(claims.Subject, 10, 64)

	s.mu.Lock()
	acc, ok := s.accounts[uint(id)]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "ERROR_CODE_UNAUTHORIZED", "message": "Unknown user"})
		return nil, false
	}
	return acc, true
}

func (s *Server) authResponse(c *gin.Context, id uint) {
	s.mu.Lock()
	ttl, alt := s.tokenTTL, s.useAltKey
	s.mu.Unlock()

	token := s.IssueToken(id, ttl)
	key := "userId"
	if alt {
		key = "user_id"
	}
	c.JSON(http.StatusOK, gin.H{"authToken": token, key: id})
}

func (s *Server) login(c *gin.Context) {
	var req remote.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, req.Email) && a.Password == req.Password {
			found = a
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		c.JSON(http.StatusForbidden, gin.H{"code": "ERROR_CODE_ACCESS_DENIED", "message": "Invalid Credentials."})
		return
	}
	s.authResponse(c, found.ID)
}

func (s *Server) signup(c *gin.Context) {
	var req remote.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, req.Email) {
			s.mu.Unlock()
			c.JSON(http.StatusBadRequest, gin.H{"code": "ERROR_CODE_INPUT_ERROR", "message": "This account is already in use."})
			return
		}
	}
	id := s.addAccountLocked(req.Name, req.Email, req.Password)
	s.mu.Unlock()

	s.authResponse(c, id)
}

func (s *Server) me(c *gin.Context) {
	acc, ok := s.authenticate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, acc.User)
}

func (s *Server) listPosts(c *gin.Context) {
	c.JSON(http.StatusOK, s.Posts())
}

func (s *Server) createPost(c *gin.Context) {
	if _, ok := s.authenticate(c); !ok {
		return
	}
	var req remote.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	p := s.AddPost(remote.Post{
		UserID:      req.UserID,
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedAt:   time.Now().UnixMilli(),
	})
	c.JSON(http.StatusOK, p)
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	users := make([]remote.User, 0, len(s.accounts))
	for id := uint(1); id < s.nextUser; id++ {
		if a, ok := s.accounts[id]; ok {
			users = append(users, a.User)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var u remote.User
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	u.ID = s.addAccountLocked(u.Name, u.Email, "")
	s.mu.Unlock()
	c.JSON(http.StatusOK, u)
}

func (s *Server) lookup(c *gin.Context) (*account, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return nil, false
	}
	s.mu.Lock()
	acc, ok := s.accounts[uint(id)]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "ERROR_CODE_NOT_FOUND", "message": "Not Found."})
		return nil, false
	}
	return acc, true
}

func (s *Server) getUser(c *gin.Context) {
	if acc, ok := s.lookup(c); ok {
		c.JSON(http.StatusOK, acc.User)
	}
}

func (s *Server) updateUser(c *gin.Context) {
	acc, ok := s.lookup(c)
	if !ok {
		return
	}
	var u remote.User
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	if u.Name != "" {
		acc.Name = u.Name
	}
	if u.Email != "" {
		acc.Email = u.Email
	}
	out := acc.User
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteUser(c *gin.Context) {
	acc, ok := s.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.accounts, acc.ID)
	s.mu.Unlock()
	c.Status(http.StatusOK)
}
