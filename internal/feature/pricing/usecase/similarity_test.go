package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cardsignal_backend/internal/feature/pricing/usecase"
)

// TestTokenSetRatio は語集合類似度の代表的なケースを検証します。
func TestTokenSetRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    string
		atLeast float64
		below   float64
	}{
		{name: "identical", a: "Mike Trout PSA 10", b: "Mike Trout PSA 10", atLeast: 100, below: 100.1},
		{name: "reordered with extra words", a: "2011 Topps Update Mike Trout #US175 PSA 10 Gem Mint", b: "Mike Trout 2011 Topps Update PSA 10", atLeast: 99.9, below: 100.1},
		{name: "case and punctuation", a: "MIKE TROUT, psa-10", b: "mike trout psa 10", atLeast: 99.9, below: 100.1},
		{name: "unrelated", a: "Pokemon Charizard Base Set Holo", b: "Mike Trout 2011 Topps PSA 10", atLeast: 0, below: 50},
		{name: "empty side", a: "", b: "Mike Trout", atLeast: 0, below: 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := usecase.TokenSetRatio(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.atLeast)
			assert.Less(t, got, tt.below)
		})
	}
}
