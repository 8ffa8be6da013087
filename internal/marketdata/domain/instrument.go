// Package domain 包含行情与参考数据的领域模型
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InstrumentKind 标的种类
type InstrumentKind string

const (
	InstrumentAsset  InstrumentKind = "ASSET"
	InstrumentOption InstrumentKind = "OPTION"
)

// Instrument 标的引用，指向一个 Asset 或一个 Option（二选一）
// 通过构造函数保证 kind 与 id 始终成对出现
type Instrument struct {
	Kind InstrumentKind
	ID   uint
}

// NewAssetInstrument 创建指向 Asset 的标的引用
func NewAssetInstrument(assetID uint) Instrument {
	return Instrument{Kind: InstrumentAsset, ID: assetID}
}

// NewOptionInstrument 创建指向 Option 的标的引用
func NewOptionInstrument(optionID uint) Instrument {
	return Instrument{Kind: InstrumentOption, ID: optionID}
}

// IsZero 是否为空引用
func (i Instrument) IsZero() bool {
	return i.ID == 0
}

// String 返回 "ASSET:42" 形式的标识，用于日志与缓存键
func (i Instrument) String() string {
	return fmt.Sprintf("%s:%d", i.Kind, i.ID)
}

// Quote 某一标的的行情切面
type Quote struct {
	// 当前标记价格
	Mark decimal.Decimal
	// 24 小时价格变动（绝对值）
	Change24h decimal.Decimal
}

// PriceSnapshot 一组标的在某一时刻的行情快照
// 估值与对账只读取快照，不直接读取共享的实时价格
type PriceSnapshot map[Instrument]Quote

// Lookup 查找标的报价
func (s PriceSnapshot) Lookup(inst Instrument) (Quote, bool) {
	q, ok := s[inst]
	return q, ok
}
