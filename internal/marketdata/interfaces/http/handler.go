// Package http 行情上下文的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/application"
	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/response"
)

// MarketDataHandler 行情 HTTP 处理器
type MarketDataHandler struct {
	service *application.MarketDataService
}

// NewMarketDataHandler 创建行情处理器
func NewMarketDataHandler(service *application.MarketDataService) *MarketDataHandler {
	return &MarketDataHandler{service: service}
}

// RegisterRoutes 注册行情路由
func (h *MarketDataHandler) RegisterRoutes(r *gin.RouterGroup) {
	assets := r.Group("/assets")
	{
		assets.POST("", h.CreateAsset)
		assets.GET("", h.ListAssets)
		assets.GET("/:asset_id", h.GetAsset)
		assets.PUT("/:asset_id/price", h.UpdateAssetPrice)
		assets.GET("/:asset_id/candles", h.Candles)
	}
	options := r.Group("/options")
	{
		options.POST("", h.CreateOption)
		options.GET("/:option_id", h.GetOption)
		options.PUT("/:option_id/price", h.UpdateOptionPrice)
	}
}

type createAssetRequest struct {
	Symbol    string         `json:"symbol" binding:"required,max=20"`
	Name      string         `json:"name" binding:"required,max=100"`
	AssetType string         `json:"asset_type" binding:"required,oneof=STOCK OPTION CRYPTO"`
	Exchange  string         `json:"exchange" binding:"max=50"`
	Price     string         `json:"price" binding:"required"`
	Metadata  map[string]any `json:"metadata"`
}

// CreateAsset 创建资产
func (h *MarketDataHandler) CreateAsset(c *gin.Context) {
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price")
		return
	}
	asset := &domain.Asset{
		Symbol:       req.Symbol,
		Name:         req.Name,
		AssetType:    domain.AssetType(req.AssetType),
		Exchange:     req.Exchange,
		CurrentPrice: price,
		Metadata:     req.Metadata,
	}
	if err := h.service.CreateAsset(c.Request.Context(), asset); err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: toAssetView(asset)})
}

// GetAsset 获取资产
func (h *MarketDataHandler) GetAsset(c *gin.Context) {
	id, err := paramID(c, "asset_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid asset_id")
		return
	}
	asset, err := h.service.GetAsset(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, toAssetView(asset))
}

// ListAssets 分页列出活跃资产
func (h *MarketDataHandler) ListAssets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	assets, total, err := h.service.ListAssets(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	views := make([]gin.H, len(assets))
	for i, a := range assets {
		views[i] = toAssetView(a)
	}
	response.Success(c, gin.H{"assets": views, "total": total})
}

type updatePriceRequest struct {
	Price     string `json:"price" binding:"required"`
	Change24h string `json:"change_24h"`
}

// UpdateAssetPrice 更新资产行情
func (h *MarketDataHandler) UpdateAssetPrice(c *gin.Context) {
	id, err := paramID(c, "asset_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid asset_id")
		return
	}
	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price")
		return
	}
	change := decimal.Zero
	if req.Change24h != "" {
		change, err = decimal.NewFromString(req.Change24h)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid change_24h")
			return
		}
	}
	asset, err := h.service.UpdateAssetPrice(c.Request.Context(), id, price, change)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, toAssetView(asset))
}

// Candles 查询 K 线
func (h *MarketDataHandler) Candles(c *gin.Context) {
	id, err := paramID(c, "asset_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid asset_id")
		return
	}
	tf := domain.Timeframe(c.DefaultQuery("timeframe", string(domain.Timeframe1m)))
	from, to := timeRange(c)
	candles, err := h.service.Candles(c.Request.Context(), id, tf, from, to)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	views := make([]gin.H, len(candles))
	for i, k := range candles {
		views[i] = gin.H{
			"timestamp": k.Timestamp.Unix(),
			"timeframe": string(k.Timeframe),
			"open":      k.OpenPrice.String(),
			"high":      k.HighPrice.String(),
			"low":       k.LowPrice.String(),
			"close":     k.ClosePrice.String(),
			"volume":    k.Volume.String(),
		}
	}
	response.Success(c, gin.H{"candles": views})
}

type createOptionRequest struct {
	Symbol            string `json:"symbol" binding:"required,max=30"`
	UnderlyingAssetID uint   `json:"underlying_asset_id" binding:"required"`
	OptionType        string `json:"option_type" binding:"required,oneof=CALL PUT"`
	StrikePrice       string `json:"strike_price" binding:"required"`
	ExpirationDate    int64  `json:"expiration_date" binding:"required"`
	Price             string `json:"price" binding:"required"`
}

// CreateOption 创建期权合约
func (h *MarketDataHandler) CreateOption(c *gin.Context) {
	var req createOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	strike, err := decimal.NewFromString(req.StrikePrice)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid strike_price")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price")
		return
	}
	option := &domain.Option{
		Symbol:            req.Symbol,
		UnderlyingAssetID: req.UnderlyingAssetID,
		OptionType:        domain.OptionType(req.OptionType),
		StrikePrice:       strike,
		ExpirationDate:    time.Unix(req.ExpirationDate, 0),
		CurrentPrice:      price,
	}
	if err := h.service.CreateOption(c.Request.Context(), option); err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Body{Code: http.StatusCreated, Message: "success", Data: toOptionView(option)})
}

// GetOption 获取期权合约
func (h *MarketDataHandler) GetOption(c *gin.Context) {
	id, err := paramID(c, "option_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid option_id")
		return
	}
	option, err := h.service.GetOption(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, toOptionView(option))
}

// UpdateOptionPrice 更新期权行情
func (h *MarketDataHandler) UpdateOptionPrice(c *gin.Context) {
	id, err := paramID(c, "option_id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid option_id")
		return
	}
	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid price")
		return
	}
	option, err := h.service.UpdateOptionPrice(c.Request.Context(), id, price)
	if err != nil {
		response.Error(c, statusFromError(err), err.Error())
		return
	}
	response.Success(c, toOptionView(option))
}

func toAssetView(a *domain.Asset) gin.H {
	return gin.H{
		"id":                      a.ID,
		"symbol":                  a.Symbol,
		"name":                    a.Name,
		"asset_type":              string(a.AssetType),
		"exchange":                a.Exchange,
		"current_price":           a.CurrentPrice.String(),
		"price_change_24h":        a.PriceChange24h.String(),
		"price_change_percent_24": a.PriceChangePercent24.String(),
		"is_active":               a.IsActive,
	}
}

func toOptionView(o *domain.Option) gin.H {
	return gin.H{
		"id":                  o.ID,
		"symbol":              o.Symbol,
		"underlying_asset_id": o.UnderlyingAssetID,
		"option_type":         string(o.OptionType),
		"strike_price":        o.StrikePrice.String(),
		"expiration_date":     o.ExpirationDate.Unix(),
		"current_price":       o.CurrentPrice.String(),
		"is_active":           o.IsActive,
	}
}

func statusFromError(err error) int {
	if errors.Is(err, application.ErrInstrumentNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return uint(id), err
}

func timeRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if v, err := strconv.ParseInt(c.Query("from"), 10, 64); err == nil {
		from = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(c.Query("to"), 10, 64); err == nil {
		to = time.Unix(v, 0)
	}
	return from, to
}
