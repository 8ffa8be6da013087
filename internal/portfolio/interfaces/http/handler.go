// Package http 组合上下文的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/portfolio/application"
	"github.com/wyfcoding/papertrading/internal/portfolio/domain"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// PortfolioHandler 组合 HTTP 处理器
type PortfolioHandler struct {
	service *application.PortfolioService
}

// NewPortfolioHandler 创建组合处理器
func NewPortfolioHandler(service *application.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{service: service}
}

// RegisterRoutes 注册组合路由
func (h *PortfolioHandler) RegisterRoutes(r *gin.RouterGroup) {
	portfolios := r.Group("/portfolios")
	{
		portfolios.POST("", h.Create)
		portfolios.GET("", h.List)
		portfolios.GET("/:portfolio_id", h.Get)
		portfolios.GET("/:portfolio_id/holdings", h.ListHoldings)
		portfolios.POST("/:portfolio_id/revalue", h.Revalue)
	}
}

type createPortfolioRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	IsDefault   bool   `json:"is_default"`
}

// Create 创建组合
func (h *PortfolioHandler) Create(c *gin.Context) {
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	portfolio, err := h.service.CreatePortfolio(c.Request.Context(), req.UserID, req.Name, req.Description, req.IsDefault)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: toPortfolioView(portfolio)})
}

// Get 获取组合详情
func (h *PortfolioHandler) Get(c *gin.Context) {
	id, err := paramID(c, "portfolio_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid portfolio_id")
		return
	}
	portfolio, err := h.service.GetPortfolio(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, toPortfolioView(portfolio))
}

// List 按用户列出组合
func (h *PortfolioHandler) List(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	portfolios, err := h.service.ListPortfolios(c.Request.Context(), uint(userID))
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	views := make([]gin.H, len(portfolios))
	for i, p := range portfolios {
		views[i] = toPortfolioView(p)
	}
	response.Success(c, gin.H{"portfolios": views})
}

// ListHoldings 列出组合持仓
func (h *PortfolioHandler) ListHoldings(c *gin.Context) {
	id, err := paramID(c, "portfolio_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid portfolio_id")
		return
	}
	holdings, err := h.service.ListHoldings(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	views := make([]gin.H, len(holdings))
	for i, hd := range holdings {
		views[i] = toHoldingView(hd)
	}
	response.Success(c, gin.H{"holdings": views})
}

// Revalue 按最新行情重算组合估值
func (h *PortfolioHandler) Revalue(c *gin.Context) {
	id, err := paramID(c, "portfolio_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid portfolio_id")
		return
	}
	summary, err := h.service.Revalue(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, summary)
}

func toPortfolioView(p *domain.Portfolio) gin.H {
	return gin.H{
		"id":             p.ID,
		"user_id":        p.UserID,
		"name":           p.Name,
		"description":    p.Description,
		"cash_balance":   p.CashBalance.String(),
		"total_value":    p.TotalValue.String(),
		"unrealized_pnl": p.UnrealizedPnL.String(),
		"realized_pnl":   p.RealizedPnL.String(),
		"is_default":     p.IsDefault,
		"created_at":     p.CreatedAt.Unix(),
	}
}

func toHoldingView(h *domain.Holding) gin.H {
	return gin.H{
		"id":                     h.ID,
		"portfolio_id":           h.PortfolioID,
		"instrument_kind":        string(h.Instrument.Kind),
		"instrument_id":          h.Instrument.ID,
		"quantity":               h.Quantity.String(),
		"average_cost":           h.AverageCost.String(),
		"current_value":          h.CurrentValue.String(),
		"unrealized_pnl":         h.UnrealizedPnL.String(),
		"unrealized_pnl_percent": h.UnrealizedPnLPercent.String(),
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrPortfolioNotFound), errors.Is(err, domain.ErrHoldingNotFound):
		return http.StatusNotFound
	case errors.Is(err, orderdomain.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, orderdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return uint(id), err
}
