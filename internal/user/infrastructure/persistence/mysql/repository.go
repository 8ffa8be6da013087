// Package mysql 用户仓储的 MySQL GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/user/domain"
	"github.com/wyfcoding/papertrading/pkg/db"
)

// UserModel 用户数据库模型，映射 users 表
type UserModel struct {
	gorm.Model
	Username     string     `gorm:"column:username;type:varchar(50);uniqueIndex;not null"`
	Email        string     `gorm:"column:email;type:varchar(100);uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(100);not null"`
	FullName     string     `gorm:"column:full_name;type:varchar(100)"`
	Status       string     `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
}

// TableName 指定表名
func (UserModel) TableName() string { return "users" }

// AutoMigrate 迁移用户表
func AutoMigrate(g *gorm.DB) error {
	return g.AutoMigrate(&UserModel{})
}

type userRepositoryImpl struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(g *gorm.DB) domain.UserRepository {
	return &userRepositoryImpl{db: g}
}

func (r *userRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	model := toModel(user)
	if err := db.FromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *userRepositoryImpl) Get(ctx context.Context, id uint) (*domain.User, error) {
	var model UserModel
	if err := db.FromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return toDomain(&model), nil
}

func (r *userRepositoryImpl) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	if err := db.FromContext(ctx, r.db).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return toDomain(&model), nil
}

func (r *userRepositoryImpl) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := db.FromContext(ctx, r.db).
		Model(&UserModel{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

func (r *userRepositoryImpl) Update(ctx context.Context, user *domain.User) error {
	updates := map[string]interface{}{
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"full_name":     user.FullName,
		"status":        string(user.Status),
		"last_login_at": user.LastLoginAt,
	}
	err := db.FromContext(ctx, r.db).
		Model(&UserModel{}).
		Where("id = ?", user.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrStoreUnavailable, err)
	}
	return nil
}

func toModel(u *domain.User) *UserModel {
	model := &UserModel{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Status:       string(u.Status),
		LastLoginAt:  u.LastLoginAt,
	}
	model.ID = u.ID
	return model
}

func toDomain(m *UserModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FullName:     m.FullName,
		Status:       domain.UserStatus(m.Status),
		LastLoginAt:  m.LastLoginAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
