package usecase

import (
	"context"
	"fmt"
	"strings"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
)

// advisoryPromptTemplate は検索クエリ生成のプロンプトです。
const advisoryPromptTemplate = `You write search queries for sold trading-card listings.
Card attributes:
%s
Reply with one search query of at most %d characters and nothing else.`

// TextGenerator はプロンプトからテキストを生成する言語モデルのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AdvisoryQueryBuilder は言語モデルに検索クエリを組み立てさせます。
type AdvisoryQueryBuilder struct {
	gen TextGenerator
}

// AdvisoryQueryBuilderがQueryBuilderを実装していることをコンパイル時に検証します。
var _ QueryBuilder = (*AdvisoryQueryBuilder)(nil)

// NewAdvisoryQueryBuilder はAdvisoryQueryBuilderの新しいインスタンスを生成します。
func NewAdvisoryQueryBuilder(gen TextGenerator) *AdvisoryQueryBuilder {
	return &AdvisoryQueryBuilder{gen: gen}
}

// BuildQuery は属性からプロンプトを組み立て、生成結果を整形して返します。
func (b *AdvisoryQueryBuilder) BuildQuery(ctx context.Context, attrs identity.EntityAttributes) (string, error) {
	if !attrs.HasName() {
		return "", ErrEmptyQuery
	}

	out, err := b.gen.Generate(ctx, buildPrompt(attrs))
	if err != nil {
		return "", fmt.Errorf("text generator failed: %w", err)
	}
	q := SanitizeQuery(out)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}

func buildPrompt(attrs identity.EntityAttributes) string {
	var lines []string
	add := func(label string, f identity.TextField) {
		if f.Present() {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, f.Value))
		}
	}
	add("name", attrs.Name)
	add("year", attrs.Era)
	add("set", attrs.Set)
	add("number", attrs.Number)
	add("grade", attrs.Grade)
	if attrs.Rookie.Present() && attrs.Rookie.Value {
		lines = append(lines, "- rookie card")
	}
	if attrs.Autograph.Present() && attrs.Autograph.Value {
		lines = append(lines, "- autographed")
	}
	if attrs.Parallel.Present() && attrs.Parallel.Value {
		lines = append(lines, "- parallel / refractor")
	}
	return fmt.Sprintf(advisoryPromptTemplate, strings.Join(lines, "\n"), MaxQueryLength)
}
