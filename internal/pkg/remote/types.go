package remote

import "encoding/json"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse 登录/注册响应
// 后端不同版本分别使用 userId 与 user_id
type AuthResponse struct {
	AuthToken string `json:"authToken"`
	UserID    uint   `json:"-"`
}

func (a *AuthResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		AuthToken string `json:"authToken"`
		UserID    *uint  `json:"userId"`
		UserIDAlt *uint  `json:"user_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.AuthToken = raw.AuthToken
	switch {
	case raw.UserID != nil:
		a.UserID = *raw.UserID
	case raw.UserIDAlt != nil:
		a.UserID = *raw.UserIDAlt
	}
	return nil
}

// User 远端用户
type User struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Post 远端 /post 资源
type Post struct {
	ID          uint   `json:"id"`
	UserID      uint   `json:"userId"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	CreatedAt   int64  `json:"created_at"` // 毫秒时间戳
}

// PostRequest 创建动态的请求体
type PostRequest struct {
	UserID      uint   `json:"userId"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

// errorBody 后端错误响应
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
