// Package application 用户注册与认证的用例逻辑
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wyfcoding/papertrading/internal/user/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// UserService 用户应用服务
type UserService struct {
	users     domain.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewUserService 创建用户应用服务
func NewUserService(users domain.UserRepository, jwtSecret string, tokenTTL time.Duration) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &UserService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register 注册新用户
func (s *UserService) Register(ctx context.Context, username, email, password, fullName string) (*domain.User, error) {
	taken, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserExists, username)
	}

	user, err := domain.NewUser(username, email, password, fullName)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Login 校验凭证并签发 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !user.CheckPassword(password) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return "", nil, domain.ErrUserInactive
	}

	user.RecordLogin(time.Now())
	if err := s.users.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login time", "user_id", user.ID, "error", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

// GetUser 获取用户
func (s *UserService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrUserNotFound, id)
	}
	return user, nil
}

// ChangePassword 修改密码，需提供旧密码
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return domain.ErrInvalidCredentials
	}
	if err := user.ChangePassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.Update(ctx, user)
}

func (s *UserService) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ParseToken 解析并校验 JWT，返回用户 ID
func (s *UserService) ParseToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, domain.ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, domain.ErrInvalidCredentials
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, domain.ErrInvalidCredentials
	}
	return uint(sub), nil
}
