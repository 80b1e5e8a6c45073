// Package entity はdecisionフィーチャーのドメインモデルを定義します。
package entity

import "time"

// Signal は入札判断のシグナルです。
type Signal string

const (
	SignalStrongPositive Signal = "STRONG_POSITIVE"
	SignalPositive       Signal = "POSITIVE"
	SignalWatch          Signal = "WATCH"
	SignalNegative       Signal = "NEGATIVE"
	SignalUnknown        Signal = "UNKNOWN" // 判断に足る根拠がない
)

// Reason はSignalがUNKNOWNになった理由コードです。
type Reason string

const (
	ReasonNone                    Reason = ""
	ReasonNoCurrentBid            Reason = "no_current_bid"
	ReasonNoIdentity              Reason = "no_identity"
	ReasonComparableLookupFailed  Reason = "comparable_lookup_failed"
	ReasonInsufficientComparables Reason = "insufficient_comparables"
)

// Factor は判断に影響した要因の列挙値です。
type Factor string

// 判断を後押しする要因
const (
	FactorStrongMarketData   Factor = "strong_market_data"
	FactorModerateMarketData Factor = "moderate_market_data"
	FactorExcellentProfit    Factor = "excellent_profit_potential"
	FactorGoodProfit         Factor = "good_profit_potential"
	FactorModestProfit       Factor = "modest_profit_potential"
	FactorPremiumGrade       Factor = "premium_grade"
	FactorHighGrade          Factor = "high_grade"
	FactorGraded             Factor = "graded"
	FactorRookiePremium      Factor = "rookie_premium"
	FactorAutograph          Factor = "autograph"
	FactorParallel           Factor = "parallel_variant"
)

// リスク要因
const (
	FactorThinData          Factor = "thin_data"
	FactorAboveMarket       Factor = "above_market_value"
	FactorUngraded          Factor = "ungraded_condition_risk"
	FactorStaleIdentity     Factor = "stale_identity"
	FactorBroadenedQuery    Factor = "broadened_comparables"
	FactorUnfilteredComps   Factor = "unfiltered_comparables"
	FactorHighBidVelocity   Factor = "high_bid_velocity"
	FactorWidePriceSpread   Factor = "wide_price_spread"
	FactorLowIdentityConfid Factor = "low_identity_confidence"
)

// IdentitySnapshot は判断に使われたエンティティの識別情報です。
type IdentitySnapshot struct {
	Name   string `json:"name"`
	Grade  string `json:"grade"`
	Era    string `json:"era"`
	Set    string `json:"set"`
	Number string `json:"number"`
	Stale  bool   `json:"stale"`
}

// DecisionResult は1サイクルの判断結果です。
// どの経路でも同じ形で全フィールドが埋められます。
type DecisionResult struct {
	Signal       Signal `json:"signal"`
	Reason       Reason `json:"reason"`
	ReasonDetail string `json:"reason_detail"`

	FairValue       float64 `json:"fair_value"`
	FairValueLow    float64 `json:"fair_value_low"`
	FairValueHigh   float64 `json:"fair_value_high"`
	ROIPotential    float64 `json:"roi_potential"` // 割合（0.3 = +30%）
	SuggestedMaxBid float64 `json:"suggested_max_bid"`
	BreakEven       float64 `json:"break_even"`
	Confidence      float64 `json:"confidence"`

	KeyFactors  []Factor `json:"key_factors"`
	RiskFactors []Factor `json:"risk_factors"`

	ComparableCount  int    `json:"comparable_count"`
	ComparableQuery  string `json:"comparable_query"`
	ComparableStatus string `json:"comparable_status"`

	Identity   IdentitySnapshot `json:"identity"`
	Continuity string           `json:"continuity"`
	CurrentBid float64          `json:"current_bid"`

	Cycle     int64     `json:"cycle"`
	SessionID string    `json:"session_id"`
	DecidedAt time.Time `json:"decided_at"`

	// Explanation は言語モデルによる判断の補足説明です。判断には影響せず、生成しない場合は空です。
	Explanation string `json:"explanation,omitempty"`
}

// IsUnknown は根拠不足による結果かどうかを返します。
func (r DecisionResult) IsUnknown() bool {
	return r.Signal == SignalUnknown
}
