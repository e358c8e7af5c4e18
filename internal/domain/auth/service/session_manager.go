package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"rankkings/internal/domain/user/model"
	"rankkings/internal/domain/user/repository"
	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/config"
	"rankkings/internal/pkg/prefs"
	"rankkings/internal/pkg/remote"
	"rankkings/pkg/logger"
	"rankkings/pkg/security"
	"rankkings/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SessionState 会话状态
type SessionState int

const (
	StateIdle SessionState = iota
	StateLoading
	StateSuccess
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// SessionStatus 状态快照
type SessionStatus struct {
	State   SessionState `json:"state"`
	Message string       `json:"message,omitempty"`
	User    *model.User  `json:"user,omitempty"`
}

// SessionManager 当前用户身份与会话持久化
// 依赖显式注入，生命周期由 Restore / Close 管理
type SessionManager struct {
	auth  remote.AuthAPI
	users repository.UserRepository
	store prefs.Store
	cfg   config.AuthConfig

	loginRules    *security.ValidatorSet
	registerRules *security.ValidatorSet
	admins        map[string]struct{}
	now           func() time.Time

	mu       sync.RWMutex
	state    SessionState
	message  string
	user     *model.User
	token    string
	nextSub  int
	watchers map[int]chan SessionStatus
}

func NewSessionManager(auth remote.AuthAPI, users repository.UserRepository, store prefs.Store, cfg config.AuthConfig) *SessionManager {
	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = 6
	}
	cfg.MinPasswordLength = minLen
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}

	return &SessionManager{
		auth:  auth,
		users: users,
		store: store,
		cfg:   cfg,
		loginRules: security.NewValidatorSet().
			AddRule("email", security.NewEmailValidator(true)).
			AddRule("password", security.NewStringValidator("password", 1, 0, true)),
		registerRules: security.NewValidatorSet().
			AddRule("name", security.NewStringValidator("name", 1, 100, true)).
			AddRule("email", security.NewEmailValidator(true)).
			AddRule("password", security.NewStringValidator("password", minLen, 0, true)),
		admins:   admins,
		now:      time.Now,
		watchers: make(map[int]chan SessionStatus),
	}
}

// Status 当前状态
func (m *SessionManager) Status() SessionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

// CurrentUser 未登录时返回 nil
func (m *SessionManager) CurrentUser() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token 远端客户端的令牌来源
func (m *SessionManager) Token(ctx context.Context) string {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token != "" {
		return token
	}
	token, err := m.store.Get(ctx, prefs.KeyAuthToken)
	if err != nil {
		return ""
	}
	return token
}

// Restore 启动时恢复持久化的会话
// 过期令牌直接丢弃，否则调用 /auth/me 确认；失败时清除会话
func (m *SessionManager) Restore(ctx context.Context) error {
	rawID, idErr := m.store.Get(ctx, prefs.KeyUserID)
	token, tokenErr := m.store.Get(ctx, prefs.KeyAuthToken)
	if idErr != nil || tokenErr != nil || rawID == "" || token == "" {
		if err := firstRealError(idErr, tokenErr); err != nil {
			return err
		}
		logger.L().Debug("no persisted session")
		m.setState(StateIdle, "", nil, "")
		return nil
	}

	if utils.TokenExpired(token, m.now()) {
		logger.L().Info("persisted token expired, clearing session")
		return m.clearSession(ctx)
	}

	if !m.begin() {
		return apperr.State("session operation already in progress")
	}

	remoteUser, err := m.auth.Me(ctx, token)
	if err != nil {
		logger.L().Warn("session restore failed", zap.Error(err))
		if clearErr := m.clearSession(ctx); clearErr != nil {
			return clearErr
		}
		return err
	}

	user, err := m.syncLocalUser(ctx, remoteUser, "")
	if err != nil {
		return m.fail(err)
	}
	m.setState(StateSuccess, "", user, token)
	logger.L().Info("session restored", zap.Uint("user_id", user.ID), zap.String("persisted_id", rawID))
	return nil
}

// Login 本地校验通过后才访问网络
func (m *SessionManager) Login(ctx context.Context, email, password string) (*model.User, error) {
	in, err := m.loginRules.Validate(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, m.invalid(err)
	}
	if !m.begin() {
		return nil, apperr.State("session operation already in progress")
	}

	resp, err := m.auth.Login(ctx, remote.LoginRequest{Email: in["email"], Password: password})
	if err != nil {
		return nil, m.fail(err)
	}
	return m.complete(ctx, resp, password)
}

// Register 校验、注册，成功后等同于登录
func (m *SessionManager) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	in, err := m.registerRules.Validate(map[string]string{"email": email, "password": password, "name": name})
	if err != nil {
		return nil, m.invalid(err)
	}
	if !m.begin() {
		return nil, apperr.State("session operation already in progress")
	}

	resp, err := m.auth.Signup(ctx, remote.SignupRequest{Name: in["name"], Email: in["email"], Password: password})
	if err != nil {
		return nil, m.fail(err)
	}
	return m.complete(ctx, resp, password)
}

// complete 用新令牌获取完整资料，写入本地用户并持久化会话
func (m *SessionManager) complete(ctx context.Context, resp *remote.AuthResponse, password string) (*model.User, error) {
	if resp.AuthToken == "" {
		return nil, m.fail(errors.New("empty auth response"))
	}

	remoteUser, err := m.auth.Me(ctx, resp.AuthToken)
	if err != nil {
		return nil, m.fail(err)
	}
	if remoteUser.ID == 0 {
		remoteUser.ID = resp.UserID
	}

	user, err := m.syncLocalUser(ctx, remoteUser, password)
	if err != nil {
		return nil, m.fail(err)
	}

	if err := m.store.Set(ctx, prefs.KeyUserID, strconv.FormatUint(uint64(user.ID), 10)); err != nil {
		return nil, m.fail(err)
	}
	if err := m.store.Set(ctx, prefs.KeyAuthToken, resp.AuthToken); err != nil {
		return nil, m.fail(err)
	}

	m.setState(StateSuccess, "", user, resp.AuthToken)
	logger.L().Info("signed in", zap.Uint("user_id", user.ID), zap.Bool("admin", user.IsAdmin()))
	return user, nil
}

// syncLocalUser 按邮箱 upsert 本地用户，首次写入时使用远端 ID
// password 非空时同步本地凭证哈希，远端仍是唯一的认证方
func (m *SessionManager) syncLocalUser(ctx context.Context, ru *remote.User, password string) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(ru.Email))
	_, admin := m.admins[email]

	user, err := m.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		hash, err := m.credentialHash("", password)
		if err != nil {
			return nil, err
		}
		user = &model.User{ID: ru.ID, Name: ru.Name, Email: email, PasswordHash: hash, Role: model.RoleUser}
		if admin {
			user.Role = model.RoleAdmin
		}
		if err := m.users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	case err != nil:
		return nil, err
	}

	user.Name = ru.Name
	if user.PasswordHash, err = m.credentialHash(user.PasswordHash, password); err != nil {
		return nil, err
	}
	if admin {
		user.Role = model.RoleAdmin
	}
	if err := m.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// credentialHash 密码与现有哈希一致时沿用，否则重新生成；password 为空时保持不变
func (m *SessionManager) credentialHash(current, password string) (string, error) {
	if password == "" {
		return current, nil
	}
	if current != "" && bcrypt.CompareHashAndPassword([]byte(current), []byte(password)) == nil {
		return current, nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), m.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Logout 清除持久化会话与内存身份
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.RLock()
	loading := m.state == StateLoading
	m.mu.RUnlock()
	if loading {
		return apperr.State("cannot logout while loading")
	}
	return m.clearSession(ctx)
}

// Reset Success/Error 回到 Idle；已登录用户保留
func (m *SessionManager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateLoading {
		return apperr.State("cannot reset while loading")
	}
	m.state = StateIdle
	m.message = ""
	m.broadcastLocked()
	return nil
}

// UpdateInterests 更新当前用户的兴趣标签
func (m *SessionManager) UpdateInterests(ctx context.Context, interests []string) (*model.User, error) {
	user := m.CurrentUser()
	if user == nil {
		return nil, apperr.State("no signed-in user")
	}

	clean := make([]string, 0, len(interests))
	seen := make(map[string]struct{}, len(interests))
	for _, i := range interests {
		i = strings.TrimSpace(i)
		if i == "" {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		clean = append(clean, i)
	}

	if err := m.users.UpdateInterests(ctx, user.ID, clean); err != nil {
		return nil, err
	}
	return m.reloadUser(ctx, user.ID)
}

// UpdateProfileImage uri 为空时清除头像
func (m *SessionManager) UpdateProfileImage(ctx context.Context, uri string) (*model.User, error) {
	user := m.CurrentUser()
	if user == nil {
		return nil, apperr.State("no signed-in user")
	}

	var ref *string
	if uri = strings.TrimSpace(uri); uri != "" {
		ref = &uri
	}
	if err := m.users.UpdateProfileImage(ctx, user.ID, ref); err != nil {
		return nil, err
	}
	return m.reloadUser(ctx, user.ID)
}

// HasSeenWelcome 当前用户是否看过欢迎页
func (m *SessionManager) HasSeenWelcome(ctx context.Context) (bool, error) {
	user := m.CurrentUser()
	if user == nil {
		return false, apperr.State("no signed-in user")
	}
	v, err := m.store.Get(ctx, prefs.WelcomeKey(user.ID))
	if errors.Is(err, prefs.ErrMissing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (m *SessionManager) MarkWelcomeSeen(ctx context.Context) error {
	user := m.CurrentUser()
	if user == nil {
		return apperr.State("no signed-in user")
	}
	return m.store.Set(ctx, prefs.WelcomeKey(user.ID), "true")
}

// Subscribe 订阅状态变化，先收到当前状态
func (m *SessionManager) Subscribe() (<-chan SessionStatus, func()) {
	ch := make(chan SessionStatus, 4)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.watchers[id] = ch
	ch <- m.statusLocked()
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
	}
}

// Close 释放所有订阅
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
}

func (m *SessionManager) reloadUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.user != nil && m.user.ID == id {
		m.user = user
		m.broadcastLocked()
	}
	m.mu.Unlock()
	u := *user
	return &u, nil
}

func (m *SessionManager) clearSession(ctx context.Context) error {
	err := m.store.Delete(ctx, prefs.KeyUserID, prefs.KeyAuthToken)
	m.setState(StateIdle, "", nil, "")
	return err
}

// begin Idle/Success/Error → Loading；已在 Loading 时返回 false
func (m *SessionManager) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateLoading {
		return false
	}
	m.state = StateLoading
	m.message = ""
	m.broadcastLocked()
	return true
}

// invalid 预检失败：状态变为 Error，但不触达网络与存储
func (m *SessionManager) invalid(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoading {
		m.state = StateError
		m.message = err.Error()
		m.broadcastLocked()
	}
	return apperr.Validation(err.Error())
}

func (m *SessionManager) fail(err error) error {
	logger.L().Warn("session operation failed", zap.Error(err))
	m.mu.Lock()
	m.state = StateError
	m.message = apperr.Message(err)
	m.broadcastLocked()
	m.mu.Unlock()
	return err
}

func (m *SessionManager) setState(state SessionState, message string, user *model.User, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.message = message
	m.user = user
	m.token = token
	m.broadcastLocked()
}

func (m *SessionManager) statusLocked() SessionStatus {
	st := SessionStatus{State: m.state, Message: m.message}
	if m.user != nil {
		u := *m.user
		st.User = &u
	}
	return st
}

func (m *SessionManager) broadcastLocked() {
	st := m.statusLocked()
	for _, ch := range m.watchers {
		select {
		case ch <- st:
		default:
		}
	}
}

func firstRealError(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, prefs.ErrMissing) {
			return err
		}
	}
	return nil
}
