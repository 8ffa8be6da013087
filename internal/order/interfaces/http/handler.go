// Package http 订单上下文的 HTTP 接口层
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/order/application"
	"github.com/wyfcoding/papertrading/internal/order/domain"
	pfdomain "github.com/wyfcoding/papertrading/internal/portfolio/domain"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// OrderHandler 订单 HTTP 处理器
type OrderHandler struct {
	service *application.OrderService
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(service *application.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 注册订单路由
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.Submit)
		orders.GET("", h.List)
		orders.GET("/:order_id", h.Get)
		orders.POST("/:order_id/accept", h.Accept)
		orders.POST("/:order_id/reject", h.Reject)
		orders.POST("/:order_id/cancel", h.Cancel)
		orders.POST("/:order_id/fills", h.ApplyFill)
		orders.GET("/:order_id/executions", h.ListExecutions)
	}
}

type submitOrderRequest struct {
	UserID         uint   `json:"user_id" binding:"required"`
	PortfolioID    uint   `json:"portfolio_id" binding:"required"`
	InstrumentKind string `json:"instrument_kind" binding:"required,oneof=ASSET OPTION"`
	InstrumentID   uint   `json:"instrument_id" binding:"required"`
	Side           string `json:"side" binding:"required,oneof=BUY SELL"`
	Type           string `json:"type" binding:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Quantity       string `json:"quantity" binding:"required"`
	Price          string `json:"price"`
	StopPrice      string `json:"stop_price"`
	TimeInForce    string `json:"time_in_force"`
	Notes          string `json:"notes"`
}

// Submit 提交订单
func (h *OrderHandler) Submit(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid quantity")
		return
	}
	price, err := optionalDecimal(req.Price)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price")
		return
	}
	stopPrice, err := optionalDecimal(req.StopPrice)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid stop_price")
		return
	}

	dto, err := h.service.Submit(c.Request.Context(), application.SubmitOrderCommand{
		UserID:      req.UserID,
		PortfolioID: req.PortfolioID,
		Instrument:  mddomain.Instrument{Kind: mddomain.InstrumentKind(req.InstrumentKind), ID: req.InstrumentID},
		Side:        domain.OrderSide(req.Side),
		Type:        domain.OrderType(req.Type),
		Quantity:    quantity,
		Price:       price,
		StopPrice:   stopPrice,
		TimeInForce: domain.TimeInForce(req.TimeInForce),
		Notes:       req.Notes,
	})
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: dto})
}

// Get 获取订单详情
func (h *OrderHandler) Get(c *gin.Context) {
	dto, err := h.service.GetOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, dto)
}

// List 按用户分页列出订单
func (h *OrderHandler) List(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	limit, offset := pagination(c)
	status := domain.OrderStatus(c.Query("status"))

	dtos, total, err := h.service.ListOrders(c.Request.Context(), uint(userID), status, limit, offset)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, gin.H{"orders": dtos, "total": total})
}

// Accept 接受订单
func (h *OrderHandler) Accept(c *gin.Context) {
	h.applyTransition(c, h.service.Accept)
}

// Reject 拒绝订单
func (h *OrderHandler) Reject(c *gin.Context) {
	h.applyTransition(c, h.service.Reject)
}

// Cancel 取消订单
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.applyTransition(c, h.service.Cancel)
}

func (h *OrderHandler) applyTransition(c *gin.Context, fn func(ctx context.Context, orderID string) (*application.OrderDTO, error)) {
	dto, err := fn(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, dto)
}

type applyFillRequest struct {
	ExecutionID string `json:"execution_id" binding:"required"`
	Price       string `json:"price" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	Commission  string `json:"commission"`
	Fees        string `json:"fees"`
	ExecutedAt  int64  `json:"executed_at"`
}

// ApplyFill 应用一笔成交，重复 execution_id 幂等返回当前订单
func (h *OrderHandler) ApplyFill(c *gin.Context) {
	var req applyFillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price")
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid quantity")
		return
	}
	commission, err := optionalDecimal(req.Commission)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid commission")
		return
	}
	fees, err := optionalDecimal(req.Fees)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid fees")
		return
	}

	executedAt := time.Now()
	if req.ExecutedAt > 0 {
		executedAt = time.Unix(req.ExecutedAt, 0)
	}

	dto, err := h.service.ApplyFill(c.Request.Context(), application.ApplyFillCommand{
		OrderID:     c.Param("order_id"),
		ExecutionID: req.ExecutionID,
		Price:       price,
		Quantity:    quantity,
		Commission:  commission,
		Fees:        fees,
		ExecutedAt:  executedAt,
	})
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, dto)
}

// ListExecutions 列出订单成交记录
func (h *OrderHandler) ListExecutions(c *gin.Context) {
	dtos, err := h.service.ListExecutions(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, gin.H{"executions": dtos})
}

// statusFromError 领域错误到 HTTP 状态码的映射
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, pfdomain.ErrPortfolioNotFound),
		errors.Is(err, pfdomain.ErrHoldingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrOverfill),
		errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, pfdomain.ErrInsufficientFunds),
		errors.Is(err, pfdomain.ErrInsufficientHolding):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
