// Package dto はsessionフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

import (
	"time"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
	"cardsignal_backend/internal/feature/session/domain/entity"
)

// RegionReq は画面上の認識対象領域です。
type RegionReq struct {
	X      int `json:"x" binding:"min=0"`
	Y      int `json:"y" binding:"min=0"`
	Width  int `json:"width" binding:"min=0"`
	Height int `json:"height" binding:"min=0"`
}

// IdentityReq はクライアント側の認識エンジンが識別した属性です。
// confidence を省略した場合は frame_confidence を、それもなければ1.0を使います。
type IdentityReq struct {
	Name       string  `json:"name"`
	Grade      string  `json:"grade"`
	Era        string  `json:"era"`
	Set        string  `json:"set"`
	Number     string  `json:"number"`
	Rookie     *bool   `json:"rookie"`
	Autograph  *bool   `json:"autograph"`
	Parallel   *bool   `json:"parallel"`
	Confidence float64 `json:"confidence" binding:"min=0,max=1"`
}

func (r IdentityReq) toAttributes(fallback float64) identity.EntityAttributes {
	conf := r.Confidence
	if conf <= 0 {
		conf = fallback
	}
	if conf <= 0 {
		conf = 1
	}
	flag := func(v *bool) identity.FlagField {
		if v == nil {
			return identity.FlagField{}
		}
		return identity.NewFlagField(*v, conf, identity.SourceVisual)
	}
	return identity.EntityAttributes{
		Name:      identity.NewTextField(r.Name, conf, identity.SourceVisual),
		Grade:     identity.NewTextField(r.Grade, conf, identity.SourceVisual),
		Era:       identity.NewTextField(r.Era, conf, identity.SourceVisual),
		Set:       identity.NewTextField(r.Set, conf, identity.SourceVisual),
		Number:    identity.NewTextField(r.Number, conf, identity.SourceVisual),
		Rookie:    flag(r.Rookie),
		Autograph: flag(r.Autograph),
		Parallel:  flag(r.Parallel),
	}
}

// CycleReq は POST /v1/sessions/:id/cycles のリクエストボディを表します。
// frame と audio はbase64文字列で受け取ります。すべてのフィールドは任意です。
type CycleReq struct {
	Frame           []byte     `json:"frame"`
	Region          *RegionReq `json:"region"`
	FrameText       string     `json:"frame_text"`
	FrameConfidence float64    `json:"frame_confidence" binding:"min=0,max=1"`
	// Identity はframe_textより優先される識別済みの属性です。
	Identity *IdentityReq `json:"identity"`

	Audio      []byte `json:"audio"`
	Transcript string `json:"transcript"`

	CurrentBid           float64 `json:"current_bid" binding:"min=0"`
	TimeRemainingSeconds float64 `json:"time_remaining_seconds" binding:"min=0"`
	BidCount             int     `json:"bid_count" binding:"min=0"`
	StartingPrice        float64 `json:"starting_price" binding:"min=0"`
}

// ToInput はリクエストをサイクル入力に変換します。
func (r CycleReq) ToInput() entity.CycleInput {
	in := entity.CycleInput{
		Frame:           r.Frame,
		FrameText:       r.FrameText,
		FrameConfidence: r.FrameConfidence,
		AudioChunk:      r.Audio,
		Transcript:      r.Transcript,
		Auction: entity.RawAuction{
			CurrentBid:    r.CurrentBid,
			TimeRemaining: time.Duration(r.TimeRemainingSeconds * float64(time.Second)),
			BidCount:      r.BidCount,
			StartingPrice: r.StartingPrice,
		},
	}
	if r.Identity != nil {
		in.FrameAttributes = r.Identity.toAttributes(r.FrameConfidence)
	}
	if r.Region != nil {
		in.Region = identity.Region{X: r.Region.X, Y: r.Region.Y, Width: r.Region.Width, Height: r.Region.Height}
	}
	return in
}

// AudioReq は POST /v1/sessions/:id/audio のリクエストボディを表します。
type AudioReq struct {
	Audio []byte `json:"audio" binding:"required"`
}
