package entity

import "time"

// AuctionState は1サイクル時点のオークション状況です。
// サイクルごとに一度だけ生成され、後から書き換えられることはありません。
type AuctionState struct {
	CurrentBid    float64       `json:"current_bid"`    // 現在の入札額（0は不明）
	TimeRemaining time.Duration `json:"time_remaining"` // 残り時間（0は不明）
	BidCount      int           `json:"bid_count"`      // 入札件数
	StartingPrice float64       `json:"starting_price"` // 開始価格
	ObservedAt    time.Time     `json:"observed_at"`
}

// Region は画面上の認識対象領域（ピクセル座標）です。ゼロ値は画面全体を意味します。
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero は領域指定がないかどうかを返します。
func (r Region) IsZero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains は点(x, y)が領域内にあるかどうかを返します。
func (r Region) Contains(x, y int) bool {
	if r.IsZero() {
		return true
	}
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// VisualText は画面認識エンジンの出力です。
// 構造化された属性を返すエンジンはAttributesを、文字認識のみのエンジンはTextを埋めます。
type VisualText struct {
	Text       string           // 認識された全文
	Confidence float64          // 全体の信頼度（0.0 ~ 1.0）
	Attributes EntityAttributes // エンジンが直接識別した属性（任意）
}
