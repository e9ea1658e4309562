package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SmartLinkDrive/CarRental/internal/common/apperr"
	"github.com/SmartLinkDrive/CarRental/internal/common/auth"
	"github.com/SmartLinkDrive/CarRental/internal/common/config"
	"github.com/SmartLinkDrive/CarRental/internal/common/logger"
	"github.com/google/uuid"
)

// Store 用户存储契约（gorm 实现见 Repo；测试用内存假实现）。
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]User, int64, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// Service 注册 / 登录 / 资料管理。
type Service struct {
	store   Store
	authCfg config.AuthConfig
	log     logger.Logger
}

func NewService(store Store, authCfg config.AuthConfig, log logger.Logger) *Service {
	return &Service{store: store, authCfg: authCfg, log: log}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult 登录成功返回的令牌与用户视图。
type LoginResult struct {
	AccessToken string  `json:"access_token"`
	ExpiresAt   int64   `json:"expires_at"`
	User        Profile `json:"user"`
}

// Register 新用户注册，初始角色固定为 user。
// 用户名与邮箱均唯一，重复时返回冲突。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict("username already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal("registration failed", err)
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal("registration failed", err)
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return nil, apperr.Internal("registration failed", err)
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		return nil, apperr.Internal("registration failed", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Roles:        RolesJoin([]string{"user"}),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, apperr.Internal("registration failed", err)
	}

	p := u.AsProfile()
	return &p, nil
}

// Login 按邮箱登录。用户不存在与口令错误返回同一个错误。
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("login failed", err)
	}
	if !VerifyPassword(in.Password, u.PasswordSalt, u.PasswordHash) {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	ttl := time.Duration(s.authCfg.TokenTTLHour) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, exp, err := auth.GenerateAccessToken(s.authCfg, u.ID, u.Username, u.RolesSlice(), ttl)
	if err != nil {
		return nil, apperr.Internal("login failed", err)
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   exp.Unix(),
		User:        u.AsProfile(),
	}, nil
}

// GetProfile 按 ID 取用户资料。
func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	u, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch user", err)
	}
	p := u.AsProfile()
	return &p, nil
}

// UserPage 管理端分页列表。
type UserPage struct {
	Users []Profile `json:"users"`
	Total int64     `json:"total"`
}

func (s *Service) List(ctx context.Context, page, size int) (*UserPage, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	users, total, err := s.store.List(ctx, (page-1)*size, size)
	if err != nil {
		return nil, apperr.Internal("could not retrieve users", err)
	}
	out := make([]Profile, 0, len(users))
	for i := range users {
		out = append(out, users[i].AsProfile())
	}
	return &UserPage{Users: out, Total: total}, nil
}

// UpdateInput 可更新字段；零值字段保持不变。
type UpdateInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Profile, error) {
	u, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Internal("update failed", err)
	}

	if v := strings.TrimSpace(in.Username); v != "" {
		u.Username = v
	}
	if v := strings.ToLower(strings.TrimSpace(in.Email)); v != "" {
		u.Email = v
	}
	if in.Password != "" {
		salt, err := GenerateSaltHex()
		if err != nil {
			return nil, apperr.Internal("update failed", err)
		}
		hash, err := HashPassword(in.Password, salt)
		if err != nil {
			return nil, apperr.Internal("update failed", err)
		}
		u.PasswordSalt = salt
		u.PasswordHash = hash
	}

	if err := s.store.Update(ctx, u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Internal("update failed", err)
	}
	p := u.AsProfile()
	return &p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("user")
	}
	if err != nil {
		return apperr.Internal("deletion failed", err)
	}
	return nil
}
