package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/decision/usecase"
)

// mockTextGenerator はTextGeneratorインターフェースのモック実装です。
type mockTextGenerator struct {
	GenerateFunc  func(ctx context.Context, prompt string) (string, error)
	GenerateCalls int
	Prompt        string
}

func (m *mockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.GenerateCalls++
	m.Prompt = prompt
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", errors.New("GenerateFunc is not implemented")
}

func decided() entity.DecisionResult {
	return entity.DecisionResult{
		Signal:          entity.SignalStrongPositive,
		FairValue:       150,
		FairValueLow:    128.79,
		FairValueHigh:   171.21,
		ROIPotential:    2,
		SuggestedMaxBid: 120,
		ComparableCount: 5,
		RiskFactors:     []entity.Factor{entity.FactorUngraded},
		Identity:        entity.IdentitySnapshot{Name: "Card A", Era: "1999", Number: "4", Grade: "PSA 9"},
		CurrentBid:      50,
	}
}

// TestAdvisoryExplainer_Explain は判断結果からプロンプトを組み立て、生成結果を整形することを検証します。
func TestAdvisoryExplainer_Explain(t *testing.T) {
	t.Parallel()

	gen := &mockTextGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		return "  Bid is a third of fair value.\n\nComps are consistent.  ", nil
	}}

	got, err := usecase.NewAdvisoryExplainer(gen).Explain(context.Background(), decided())
	require.NoError(t, err)

	assert.Equal(t, "Bid is a third of fair value. Comps are consistent.", got)
	assert.Equal(t, 1, gen.GenerateCalls)
	assert.Contains(t, gen.Prompt, "Card: 1999 Card A #4 PSA 9")
	assert.Contains(t, gen.Prompt, "Current bid: $50.00")
	assert.Contains(t, gen.Prompt, "from 5 comparable sales")
	assert.Contains(t, gen.Prompt, "Signal: STRONG_POSITIVE (ROI +200%)")
	assert.Contains(t, gen.Prompt, "Risks: ungraded_condition_risk")
}

// TestAdvisoryExplainer_Failures は生成に失敗した場合や説明の対象がない場合のエラーを検証します。
func TestAdvisoryExplainer_Failures(t *testing.T) {
	t.Parallel()

	errQuota := errors.New("quota exceeded")

	testCases := []struct {
		name      string
		result    entity.DecisionResult
		generate  func(ctx context.Context, prompt string) (string, error)
		wantErr   error
		wantCalls int
	}{
		{
			name:   "generator error",
			result: decided(),
			generate: func(ctx context.Context, prompt string) (string, error) {
				return "", errQuota
			},
			wantErr:   errQuota,
			wantCalls: 1,
		},
		{
			name:   "blank output",
			result: decided(),
			generate: func(ctx context.Context, prompt string) (string, error) {
				return " \n ", nil
			},
			wantErr:   usecase.ErrEmptyExplanation,
			wantCalls: 1,
		},
		{
			name:      "unknown result is not sent",
			result:    entity.DecisionResult{Signal: entity.SignalUnknown, Reason: entity.ReasonNoIdentity},
			wantErr:   usecase.ErrNothingToExplain,
			wantCalls: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen := &mockTextGenerator{GenerateFunc: tc.generate}
			got, err := usecase.NewAdvisoryExplainer(gen).Explain(context.Background(), tc.result)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, got)
			assert.Equal(t, tc.wantCalls, gen.GenerateCalls)
		})
	}
}

func TestSanitizeExplanation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	got := usecase.SanitizeExplanation(long)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), usecase.MaxExplanationLength)
	assert.False(t, strings.HasSuffix(got, " "))

	assert.Equal(t, "割安です。", usecase.SanitizeExplanation("\t割安です。\n"))
}
