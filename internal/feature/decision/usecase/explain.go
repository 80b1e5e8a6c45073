package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"cardsignal_backend/internal/feature/decision/domain/entity"
)

// MaxExplanationLength は補足説明の最大文字数です。
const MaxExplanationLength = 400

var (
	// ErrNothingToExplain はUNKNOWNの結果に説明を求めた場合のエラーです。
	ErrNothingToExplain = errors.New("unknown decision has nothing to explain")
	// ErrEmptyExplanation は生成された説明が空の場合のエラーです。
	ErrEmptyExplanation = errors.New("empty explanation")
)

const explainPromptTemplate = `You advise a bidder in a live trading-card auction.
Card: %s
Current bid: $%.2f
Fair value: $%.2f (range $%.2f to $%.2f) from %d comparable sales
Signal: %s (ROI %+.0f%%), suggested max bid $%.2f
Risks: %s
Explain the signal to the bidder in at most two short sentences. Plain text only.`

// TextGenerator はプロンプトからテキストを生成する言語モデルのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AdvisoryExplainer は言語モデルに判断結果の説明文を書かせます。
type AdvisoryExplainer struct {
	gen TextGenerator
}

// NewAdvisoryExplainer はAdvisoryExplainerの新しいインスタンスを生成します。
func NewAdvisoryExplainer(gen TextGenerator) *AdvisoryExplainer {
	return &AdvisoryExplainer{gen: gen}
}

// Explain は判断結果からプロンプトを組み立て、生成結果を整形して返します。
func (e *AdvisoryExplainer) Explain(ctx context.Context, result entity.DecisionResult) (string, error) {
	if result.IsUnknown() {
		return "", ErrNothingToExplain
	}

	out, err := e.gen.Generate(ctx, explainPrompt(result))
	if err != nil {
		return "", fmt.Errorf("text generator failed: %w", err)
	}
	text := SanitizeExplanation(out)
	if text == "" {
		return "", ErrEmptyExplanation
	}
	return text, nil
}

// SanitizeExplanation は空白を1つにまとめ、最大文字数で切り詰めます。
func SanitizeExplanation(raw string) string {
	text := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(text) <= MaxExplanationLength {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:MaxExplanationLength]))
}

func explainPrompt(r entity.DecisionResult) string {
	risks := make([]string, 0, len(r.RiskFactors))
	for _, f := range r.RiskFactors {
		risks = append(risks, string(f))
	}
	riskText := "none"
	if len(risks) > 0 {
		riskText = strings.Join(risks, ", ")
	}
	return fmt.Sprintf(explainPromptTemplate,
		describeCard(r.Identity),
		r.CurrentBid,
		r.FairValue, r.FairValueLow, r.FairValueHigh, r.ComparableCount,
		r.Signal, r.ROIPotential*100, r.SuggestedMaxBid,
		riskText,
	)
}

func describeCard(id entity.IdentitySnapshot) string {
	var parts []string
	for _, p := range []string{id.Era, id.Set, id.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if id.Number != "" {
		parts = append(parts, "#"+id.Number)
	}
	if id.Grade != "" {
		parts = append(parts, id.Grade)
	}
	return strings.Join(parts, " ")
}
