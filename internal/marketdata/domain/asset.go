package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType 资产类型
type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeOption AssetType = "OPTION"
	AssetTypeCrypto AssetType = "CRYPTO"
)

// Asset 资产参考数据与最新行情
type Asset struct {
	ID                   uint
	Symbol               string
	Name                 string
	AssetType            AssetType
	Exchange             string
	CurrentPrice         decimal.Decimal
	MarketCap            decimal.Decimal
	Volume24h            decimal.Decimal
	PriceChange24h       decimal.Decimal
	PriceChangePercent24 decimal.Decimal
	IsActive             bool
	Metadata             map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Instrument 返回指向该资产的标的引用
func (a *Asset) Instrument() Instrument {
	return NewAssetInstrument(a.ID)
}

// Quote 返回资产当前行情切面
func (a *Asset) Quote() Quote {
	return Quote{Mark: a.CurrentPrice, Change24h: a.PriceChange24h}
}

// ApplyPrice 应用一次价格更新，维护 24h 变动字段
func (a *Asset) ApplyPrice(price, change24h decimal.Decimal) {
	a.CurrentPrice = price
	a.PriceChange24h = change24h
	base := price.Sub(change24h)
	if base.IsZero() {
		a.PriceChangePercent24 = decimal.Zero
	} else {
		a.PriceChangePercent24 = change24h.Div(base).Mul(decimal.NewFromInt(100)).Round(4)
	}
	a.UpdatedAt = time.Now()
}

// OptionType 期权类型
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// Option 期权合约参考数据
// 希腊字母与隐含波动率仅存储，不在本服务内计算
type Option struct {
	ID                uint
	Symbol            string
	UnderlyingAssetID uint
	OptionType        OptionType
	StrikePrice       decimal.Decimal
	ExpirationDate    time.Time
	CurrentPrice      decimal.Decimal
	ImpliedVolatility decimal.Decimal
	Delta             decimal.Decimal
	Gamma             decimal.Decimal
	Theta             decimal.Decimal
	Vega              decimal.Decimal
	OpenInterest      int64
	Volume            int64
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Instrument 返回指向该期权的标的引用
func (o *Option) Instrument() Instrument {
	return NewOptionInstrument(o.ID)
}

// Quote 返回期权当前行情切面，期权无 24h 变动口径
func (o *Option) Quote() Quote {
	return Quote{Mark: o.CurrentPrice, Change24h: decimal.Zero}
}

// IsExpired 是否已到期
func (o *Option) IsExpired(now time.Time) bool {
	return now.After(o.ExpirationDate)
}
