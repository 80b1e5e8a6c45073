// Package entity はpricingフィーチャーのドメインモデルを定義します。
package entity

import "time"

// Status は比較販売の検索結果の状態です。
type Status string

const (
	StatusOK           Status = "ok"
	StatusNoData       Status = "no_data"       // 検索は成功したが該当なし
	StatusLookupFailed Status = "lookup_failed" // 検索自体が失敗・タイムアウト
)

// Listing はマーケットプレイス検索の1件です。
type Listing struct {
	Price  float64 `json:"price"`
	Title  string  `json:"title"`
	URL    string  `json:"url,omitempty"`
	Source string  `json:"source,omitempty"` // 取得元マーケットプレイス名
}

// Sale は比較対象となる過去の販売実績です。
type Sale struct {
	Price  float64 `json:"price"`
	Title  string  `json:"title"`
	Source string  `json:"source,omitempty"`
}

// ComparableSet は1回の価格解決の結果です。
// Salesはマーケットプレイスが返した順序を保ちます。件数0の場合、Statusはno_dataかlookup_failedです。
type ComparableSet struct {
	Sales         []Sale    `json:"sales"`
	Query         string    `json:"query"`
	FetchedAt     time.Time `json:"fetched_at"`
	Status        Status    `json:"status"`
	Broadened     bool      `json:"broadened"`      // 絞り込み条件を緩めた再検索の結果か
	FilterSkipped bool      `json:"filter_skipped"` // 類似度フィルタで全件除外されたため未フィルタの結果か
}

// Count は販売実績の件数を返します。
func (c ComparableSet) Count() int {
	return len(c.Sales)
}

// Prices は販売価格を先頭から最大limit件返します。limitが0以下の場合は全件です。
func (c ComparableSet) Prices(limit int) []float64 {
	n := len(c.Sales)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]float64, 0, n)
	for _, s := range c.Sales[:n] {
		out = append(out, s.Price)
	}
	return out
}

// LookupFailed は検索失敗による空の結果かどうかを返します。
func (c ComparableSet) LookupFailed() bool {
	return c.Status == StatusLookupFailed
}
