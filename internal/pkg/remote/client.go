package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/config"
	"rankkings/pkg/logger"
	"rankkings/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AuthAPI 认证接口（auth base URL）
type AuthAPI interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error)
	Me(ctx context.Context, token string) (*User, error)
}

// PostAPI 动态资源接口
type PostAPI interface {
	ListPosts(ctx context.Context) ([]Post, error)
	CreatePost(ctx context.Context, req PostRequest) (*Post, error)
}

// UserAPI 用户资源接口
type UserAPI interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id uint) (*User, error)
	UpdateUser(ctx context.Context, id uint, u User) (*User, error)
	PatchUser(ctx context.Context, id uint, u User) (*User, error)
	DeleteUser(ctx context.Context, id uint) error
}

// TokenSource 返回当前持久化的令牌，没有时返回空串
type TokenSource func(ctx context.Context) string

// Client 远端 REST 客户端
type Client struct {
	authBase string
	apiBase  string
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	metrics  *metrics.MetricsCollector
}

var (
	_ AuthAPI = (*Client)(nil)
	_ PostAPI = (*Client)(nil)
	_ UserAPI = (*Client)(nil)
)

// NewClient 创建客户端，tokens 与 m 可为 nil
func NewClient(cfg config.RemoteConfig, tokens TokenSource, m *metrics.MetricsCollector) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Client{
		authBase: strings.TrimRight(cfg.AuthBaseURL, "/"),
		apiBase:  strings.TrimRight(cfg.APIBaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		tokens:   tokens,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  m,
	}
}

// SetTokenSource 会话管理器创建后再注入，避免构造期循环依赖
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// --- Auth ---

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, c.authBase, "/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, c.authBase, "/auth/signup", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me 获取当前认证用户；token 为空时使用持久化的令牌
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, c.authBase, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Post ---

func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var out []Post
	if err := c.do(ctx, http.MethodGet, c.apiBase, "/post", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, req PostRequest) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodPost, c.apiBase, "/post", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- User ---

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, c.apiBase, "/user", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, u User) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, c.apiBase, "/user", "", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, id uint) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, c.apiBase, userPath(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id uint, u User) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPut, c.apiBase, userPath(id), "", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PatchUser(ctx context.Context, id uint, u User) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPatch, c.apiBase, userPath(id), "", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, c.apiBase, userPath(id), "", nil, nil)
}

func userPath(id uint) string {
	return "/user/" + strconv.FormatUint(uint64(id), 10)
}

// do 发送请求并解码响应
// 传输失败包装为 ErrRemote，非 2xx 返回 *apperr.RemoteError
func (c *Client) do(ctx context.Context, method, base, path, token string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrRemote, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrRemote, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	if token == "" && c.tokens != nil {
		token = c.tokens(ctx)
	}
	// 没有令牌时不带认证头，是否拒绝由服务端决定
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(method, path, 0, time.Since(start))
		logger.L().Warn("remote call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", apperr.ErrRemote, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteCall(method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperr.RemoteError{Status: resp.StatusCode, Message: readErrorMessage(resp)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrRemote, err)
	}
	return nil
}

func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return http.StatusText(resp.StatusCode)
	}

	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
		return eb.Message
	}
	return strings.TrimSpace(string(data))
}
