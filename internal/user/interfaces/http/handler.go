// Package http 用户上下文的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/user/application"
	"github.com/wyfcoding/papertrading/internal/user/domain"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// UserHandler 用户 HTTP 处理器
type UserHandler struct {
	service *application.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(service *application.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRoutes 注册用户路由
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)
		users.GET("/:user_id", h.Get)
		users.PUT("/:user_id/password", h.ChangePassword)
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"max=100"`
}

// Register 注册新用户
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.service.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: toUserView(user)})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并签发 JWT
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	token, user, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, gin.H{"token": token, "user": toUserView(user)})
}

// Get 获取用户
func (h *UserHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), uint(id))
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, toUserView(user))
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

// ChangePassword 修改密码
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), uint(id), req.OldPassword, req.NewPassword); err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, nil)
}

func toUserView(u *domain.User) gin.H {
	view := gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"full_name":  u.FullName,
		"status":     string(u.Status),
		"created_at": u.CreatedAt.Unix(),
	}
	if u.LastLoginAt != nil {
		view["last_login_at"] = u.LastLoginAt.Unix()
	}
	return view
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserInactive):
		return http.StatusUnauthorized
	case errors.Is(err, orderdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
