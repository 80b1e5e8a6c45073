// Package usecase は比較販売と現在の入札額から入札判断を導くルールを実装します。
package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	identity "cardsignal_backend/internal/feature/identity/domain/entity"
	pricing "cardsignal_backend/internal/feature/pricing/domain/entity"
)

// tierConfidence はSignalごとの基本信頼度です。
var tierConfidence = map[entity.Signal]float64{
	entity.SignalStrongPositive: 0.9,
	entity.SignalPositive:       0.7,
	entity.SignalWatch:          0.3,
	entity.SignalNegative:       0.8,
}

// Engine は入札判断を行います。状態を持たず、並行に呼び出せます。
type Engine struct {
	cfg         Config
	multipliers map[string]float64
	now         func() time.Time
}

// NewEngine はEngineの新しいインスタンスを生成します。設定は事前にValidateしておく必要があります。
func NewEngine(cfg Config) *Engine {
	m := make(map[string]float64, len(cfg.GradeMultipliers))
	for k, v := range cfg.GradeMultipliers {
		m[normalizeGrade(k)] = v
	}
	return &Engine{cfg: cfg, multipliers: m, now: time.Now}
}

// Decide はエンティティ・オークション状態・比較販売から判断結果を返します。
// 根拠が足りない場合はSignalをUNKNOWNにし、理由コードを付けて数値をゼロにします。
func (e *Engine) Decide(attrs identity.EntityAttributes, auction identity.AuctionState, comps pricing.ComparableSet) entity.DecisionResult {
	res := entity.DecisionResult{
		Signal:           entity.SignalUnknown,
		KeyFactors:       []entity.Factor{},
		RiskFactors:      []entity.Factor{},
		ComparableCount:  comps.Count(),
		ComparableQuery:  comps.Query,
		ComparableStatus: string(comps.Status),
		Identity:         snapshot(attrs),
		CurrentBid:       auction.CurrentBid,
		DecidedAt:        e.now(),
	}

	switch {
	case auction.CurrentBid <= 0:
		return unknown(res, entity.ReasonNoCurrentBid, "no current bid observed")
	case !attrs.HasName():
		return unknown(res, entity.ReasonNoIdentity, "item could not be identified")
	case comps.Count() == 0 && comps.LookupFailed():
		return unknown(res, entity.ReasonComparableLookupFailed, "comparable sales lookup failed")
	case comps.Count() < e.cfg.MinComparables:
		return unknown(res, entity.ReasonInsufficientComparables,
			fmt.Sprintf("found %d comparable sales; minimum is %d", comps.Count(), e.cfg.MinComparables))
	}

	mean := average(comps.Prices(e.cfg.FairValueSample))
	sd := stdev(comps.Prices(0), mean)
	mult := e.multiplier(attrs.Grade.Value)

	fair := mean * mult
	res.FairValue = roundCents(fair)
	res.FairValueLow = roundCents(math.Max(0, (mean-sd)*mult))
	res.FairValueHigh = roundCents((mean + sd) * mult)
	res.ROIPotential = (fair - auction.CurrentBid) / auction.CurrentBid
	res.SuggestedMaxBid = roundCents(fair * e.cfg.MaxBidFraction)
	res.BreakEven = roundCents(fair * (1 - e.cfg.SellingFee))

	thin := comps.Count() < e.cfg.ThinDataCount
	th := e.cfg.Normal
	if thin {
		th = e.cfg.Thin
	}
	res.Signal = classify(res.ROIPotential, th)

	conf := tierConfidence[res.Signal] *
		math.Min(1, float64(comps.Count())/float64(e.cfg.FairValueSample)) *
		attrs.IdentityConfidence()
	if attrs.Stale {
		conf *= e.cfg.StalePenalty
	}
	res.Confidence = math.Max(0, math.Min(1, conf))

	res.KeyFactors, res.RiskFactors = e.factors(attrs, auction, comps, res.ROIPotential, mean, sd, thin)
	res.ReasonDetail = fmt.Sprintf("ROI %+.0f%% against fair value $%.2f from %d comparable sales",
		res.ROIPotential*100, res.FairValue, comps.Count())
	return res
}

func (e *Engine) multiplier(grade string) float64 {
	if m, ok := e.multipliers[normalizeGrade(grade)]; ok {
		return m
	}
	return 1.0
}

func (e *Engine) factors(attrs identity.EntityAttributes, auction identity.AuctionState, comps pricing.ComparableSet,
	roi, mean, sd float64, thin bool) (key, risk []entity.Factor) {
	key = []entity.Factor{}
	risk = []entity.Factor{}

	switch n := comps.Count(); {
	case n >= e.cfg.FairValueSample:
		key = append(key, entity.FactorStrongMarketData)
	case !thin:
		key = append(key, entity.FactorModerateMarketData)
	default:
		risk = append(risk, entity.FactorThinData)
	}

	switch {
	case roi > 0.25:
		key = append(key, entity.FactorExcellentProfit)
	case roi > 0.10:
		key = append(key, entity.FactorGoodProfit)
	case roi > 0:
		key = append(key, entity.FactorModestProfit)
	default:
		risk = append(risk, entity.FactorAboveMarket)
	}

	switch g := normalizeGrade(attrs.Grade.Value); {
	case g == "PSA 10" || g == "BGS 9.5":
		key = append(key, entity.FactorPremiumGrade)
	case g == "PSA 9" || g == "BGS 9":
		key = append(key, entity.FactorHighGrade)
	case g != "":
		key = append(key, entity.FactorGraded)
	default:
		risk = append(risk, entity.FactorUngraded)
	}

	if attrs.Rookie.Value {
		key = append(key, entity.FactorRookiePremium)
	}
	if attrs.Autograph.Value {
		key = append(key, entity.FactorAutograph)
	}
	if attrs.Parallel.Value {
		key = append(key, entity.FactorParallel)
	}

	if attrs.Stale {
		risk = append(risk, entity.FactorStaleIdentity)
	}
	if attrs.IdentityConfidence() < e.cfg.LowIdentityConf {
		risk = append(risk, entity.FactorLowIdentityConfid)
	}
	if comps.Broadened {
		risk = append(risk, entity.FactorBroadenedQuery)
	}
	if comps.FilterSkipped {
		risk = append(risk, entity.FactorUnfilteredComps)
	}
	if e.cfg.HighBidCount > 0 && auction.BidCount >= e.cfg.HighBidCount {
		risk = append(risk, entity.FactorHighBidVelocity)
	}
	if mean > 0 && e.cfg.WideSpreadRatio > 0 && sd/mean > e.cfg.WideSpreadRatio {
		risk = append(risk, entity.FactorWidePriceSpread)
	}
	return key, risk
}

func classify(roi float64, th Thresholds) entity.Signal {
	switch {
	case roi >= th.Strong:
		return entity.SignalStrongPositive
	case roi >= th.Positive:
		return entity.SignalPositive
	case roi >= th.Watch:
		return entity.SignalWatch
	default:
		return entity.SignalNegative
	}
}

// unknown は根拠不足の結果を返します。入札額と件数を含む数値フィールドはすべてゼロです。
func unknown(res entity.DecisionResult, reason entity.Reason, detail string) entity.DecisionResult {
	res.Signal = entity.SignalUnknown
	res.CurrentBid = 0
	res.ComparableCount = 0
	res.Reason = reason
	res.ReasonDetail = detail
	return res
}

func snapshot(a identity.EntityAttributes) entity.IdentitySnapshot {
	return entity.IdentitySnapshot{
		Name:   a.Name.Value,
		Grade:  a.Grade.Value,
		Era:    a.Era.Value,
		Set:    a.Set.Value,
		Number: a.Number.Value,
		Stale:  a.Stale,
	}
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev は標本標準偏差を返します。1件の場合は平均の20%とします。
func stdev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return mean * 0.2
	}
	m := average(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func normalizeGrade(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
