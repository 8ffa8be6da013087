// Package http 自选列表上下文的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	orderdomain "github.com/wyfcoding/papertrading/internal/order/domain"
	"github.com/wyfcoding/papertrading/internal/watchlist/application"
	"github.com/wyfcoding/papertrading/internal/watchlist/domain"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// WatchlistHandler 自选列表 HTTP 处理器
type WatchlistHandler struct {
	service *application.WatchlistService
}

// NewWatchlistHandler 创建自选列表处理器
func NewWatchlistHandler(service *application.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{service: service}
}

// RegisterRoutes 注册自选列表路由
func (h *WatchlistHandler) RegisterRoutes(r *gin.RouterGroup) {
	watchlists := r.Group("/watchlists")
	{
		watchlists.POST("", h.Create)
		watchlists.GET("", h.List)
		watchlists.DELETE("/:watchlist_id", h.Delete)
		watchlists.POST("/:watchlist_id/items", h.AddItem)
		watchlists.GET("/:watchlist_id/items", h.ListItems)
		watchlists.DELETE("/:watchlist_id/items", h.RemoveItem)
		watchlists.GET("/:watchlist_id/alerts", h.CheckAlerts)
	}
}

type createWatchlistRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required,max=100"`
}

// Create 创建自选列表
func (h *WatchlistHandler) Create(c *gin.Context) {
	var req createWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	watchlist, err := h.service.Create(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: watchlist})
}

// List 按用户列出自选列表
func (h *WatchlistHandler) List(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	watchlists, err := h.service.ListByUser(c.Request.Context(), uint(userID))
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, gin.H{"watchlists": watchlists})
}

// Delete 删除自选列表
func (h *WatchlistHandler) Delete(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid watchlist_id")
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, nil)
}

type addItemRequest struct {
	InstrumentKind string `json:"instrument_kind" binding:"required,oneof=ASSET OPTION"`
	InstrumentID   uint   `json:"instrument_id" binding:"required"`
	PriceAlertHigh string `json:"price_alert_high"`
	PriceAlertLow  string `json:"price_alert_low"`
	Notes          string `json:"notes"`
}

// AddItem 添加自选条目
func (h *WatchlistHandler) AddItem(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid watchlist_id")
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	high, err := optionalDecimal(req.PriceAlertHigh)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price_alert_high")
		return
	}
	low, err := optionalDecimal(req.PriceAlertLow)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price_alert_low")
		return
	}
	item := &domain.WatchlistItem{
		WatchlistID:    id,
		Instrument:     mddomain.Instrument{Kind: mddomain.InstrumentKind(req.InstrumentKind), ID: req.InstrumentID},
		PriceAlertHigh: high,
		PriceAlertLow:  low,
		Notes:          req.Notes,
	}
	if err := h.service.AddItem(c.Request.Context(), item); err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: toItemView(item)})
}

// ListItems 列出自选条目
func (h *WatchlistHandler) ListItems(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid watchlist_id")
		return
	}
	items, err := h.service.ListItems(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	views := make([]gin.H, len(items))
	for i, item := range items {
		views[i] = toItemView(item)
	}
	response.Success(c, gin.H{"items": views})
}

// RemoveItem 移除自选条目
func (h *WatchlistHandler) RemoveItem(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid watchlist_id")
		return
	}
	kind := c.Query("instrument_kind")
	instID, err := strconv.ParseUint(c.Query("instrument_id"), 10, 64)
	if err != nil || (kind != string(mddomain.InstrumentAsset) && kind != string(mddomain.InstrumentOption)) {
		response.Error(c, http.StatusBadRequest, "invalid instrument")
		return
	}
	inst := mddomain.Instrument{Kind: mddomain.InstrumentKind(kind), ID: uint(instID)}
	if err := h.service.RemoveItem(c.Request.Context(), id, inst); err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, nil)
}

// CheckAlerts 评估列表内的价格提醒
func (h *WatchlistHandler) CheckAlerts(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid watchlist_id")
		return
	}
	states, err := h.service.CheckAlerts(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	views := make([]gin.H, len(states))
	for i, st := range states {
		views[i] = gin.H{
			"instrument_kind": string(st.Item.Instrument.Kind),
			"instrument_id":   st.Item.Instrument.ID,
			"mark":            st.Mark.String(),
			"high_triggered":  st.HighTriggered,
			"low_triggered":   st.LowTriggered,
		}
	}
	response.Success(c, gin.H{"alerts": views})
}

func toItemView(item *domain.WatchlistItem) gin.H {
	view := gin.H{
		"id":              item.ID,
		"watchlist_id":    item.WatchlistID,
		"instrument_kind": string(item.Instrument.Kind),
		"instrument_id":   item.Instrument.ID,
		"notes":           item.Notes,
	}
	if !item.PriceAlertHigh.IsZero() {
		view["price_alert_high"] = item.PriceAlertHigh.String()
	}
	if !item.PriceAlertLow.IsZero() {
		view["price_alert_low"] = item.PriceAlertLow.String()
	}
	return view
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrWatchlistNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrItemExists):
		return http.StatusConflict
	case errors.Is(err, orderdomain.ErrStoreUnavailable):
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

func paramID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("watchlist_id"), 10, 64)
	return uint(id), err
}
