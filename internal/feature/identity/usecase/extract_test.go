package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cardsignal_backend/internal/feature/identity/domain/entity"
)

// TestParseVisualText は文字認識テキストから各属性が抽出されることを検証します。
func TestParseVisualText(t *testing.T) {
	t.Parallel()

	attrs := ParseVisualText("2018 Topps Update Shohei Ohtani #US1 Rookie PSA 10", 0.9)

	assert.Equal(t, "Shohei Ohtani", attrs.Name.Value)
	assert.InDelta(t, 0.9, attrs.Name.Confidence, 1e-9)
	assert.Equal(t, entity.SourceVisual, attrs.Name.Source)
	assert.Equal(t, "2018", attrs.Era.Value)
	assert.Equal(t, "PSA 10", attrs.Grade.Value)
	assert.Equal(t, "US1", attrs.Number.Value)
	assert.Equal(t, "Topps", attrs.Set.Value)
	assert.InDelta(t, 0.81, attrs.Set.Confidence, 1e-9)
	assert.True(t, attrs.Rookie.Present())
	assert.True(t, attrs.Rookie.Value)
	assert.False(t, attrs.Autograph.Present())
	assert.False(t, attrs.Parallel.Present())
	assert.Equal(t, "PSA", attrs.GradingCompany())
}

// TestVisualAttributes はエンジンが識別した属性を優先し、テキストの解析結果で未観測のフィールドだけを補うことを検証します。
func TestVisualAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		out    entity.VisualText
		assert func(t *testing.T, got entity.EntityAttributes)
	}{
		{
			name: "single word name without text",
			out: entity.VisualText{
				Attributes: entity.EntityAttributes{Name: entity.TextField{Value: " Charizard ", Confidence: 0.9}},
			},
			assert: func(t *testing.T, got entity.EntityAttributes) {
				assert.Equal(t, "Charizard", got.Name.Value)
				assert.Equal(t, entity.SourceVisual, got.Name.Source, "unset source becomes visual")
				assert.False(t, got.Grade.Present())
			},
		},
		{
			name: "structured name wins over parsed text",
			out: entity.VisualText{
				Text:       "2011 Topps Update Mike Trout PSA 9",
				Confidence: 0.8,
				Attributes: entity.EntityAttributes{
					Name:  entity.NewTextField("Card A", 0.95, entity.SourceVisual),
					Grade: entity.NewTextField("PSA 10", 0.95, entity.SourceVisual),
				},
			},
			assert: func(t *testing.T, got entity.EntityAttributes) {
				assert.Equal(t, "Card A", got.Name.Value)
				assert.InDelta(t, 0.95, got.Name.Confidence, 1e-9)
				assert.Equal(t, "PSA 10", got.Grade.Value)
				assert.Equal(t, "2011", got.Era.Value)
				assert.InDelta(t, 0.8, got.Era.Confidence, 1e-9)
				assert.Equal(t, "Topps", got.Set.Value)
			},
		},
		{
			name: "absent structured fields fall back to text",
			out: entity.VisualText{
				Text:       "Shohei Ohtani Rookie",
				Confidence: 0.9,
				Attributes: entity.EntityAttributes{Name: entity.TextField{Value: "   ", Confidence: 0.9}},
			},
			assert: func(t *testing.T, got entity.EntityAttributes) {
				assert.Equal(t, "Shohei Ohtani", got.Name.Value)
				assert.True(t, got.Rookie.Value)
			},
		},
		{
			name: "confidence is clamped",
			out: entity.VisualText{
				Attributes: entity.EntityAttributes{
					Name:      entity.TextField{Value: "Pikachu VMAX", Confidence: 1.7},
					Autograph: entity.FlagField{Value: true, Confidence: 2},
				},
			},
			assert: func(t *testing.T, got entity.EntityAttributes) {
				assert.Equal(t, "Pikachu VMAX", got.Name.Value)
				assert.InDelta(t, 1.0, got.Name.Confidence, 1e-9)
				assert.InDelta(t, 1.0, got.Autograph.Confidence, 1e-9)
				assert.Equal(t, entity.SourceVisual, got.Autograph.Source)
			},
		},
		{
			name: "nothing recognized",
			out:  entity.VisualText{},
			assert: func(t *testing.T, got entity.EntityAttributes) {
				assert.True(t, got.IsEmpty())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.assert(t, VisualAttributes(tt.out))
		})
	}
}

// TestParseVisualText_Empty は空テキストや信頼度0では何も抽出されないことを検証します。
func TestParseVisualText_Empty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		conf float64
	}{
		{name: "blank text", text: "   ", conf: 0.9},
		{name: "zero confidence", text: "Mike Trout PSA 10", conf: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, ParseVisualText(tt.text, tt.conf).IsEmpty())
		})
	}
}

// TestParseVisualText_Flags はサイン・パラレル表記の検出を検証します。
func TestParseVisualText_Flags(t *testing.T) {
	t.Parallel()

	attrs := ParseVisualText("Luka Doncic Prizm Silver Auto /99 BGS 9.5", 0.8)

	assert.Equal(t, "Luka Doncic", attrs.Name.Value)
	assert.Equal(t, "BGS 9.5", attrs.Grade.Value)
	assert.Equal(t, "Prizm", attrs.Set.Value)
	assert.True(t, attrs.Autograph.Value)
	assert.True(t, attrs.Parallel.Value)
}

// TestParseTranscript は実況の文字起こしから属性・入札額・信頼度が得られることを検証します。
func TestParseTranscript(t *testing.T) {
	t.Parallel()

	res := ParseTranscript("PSA 10 Mike Trout 2011 Topps, we're at $150")

	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.InDelta(t, 150.0, res.SpokenBid, 1e-9)
	assert.Equal(t, "Mike Trout", res.Attributes.Name.Value)
	assert.InDelta(t, 0.75, res.Attributes.Name.Confidence, 1e-9)
	assert.Equal(t, entity.SourceAudio, res.Attributes.Name.Source)
	assert.Equal(t, "PSA 10", res.Attributes.Grade.Value)
	assert.Equal(t, "2011", res.Attributes.Era.Value)
}

// TestParseTranscript_Partial は一部だけ言及された場合の信頼度を検証します。
func TestParseTranscript_Partial(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		wantConf float64
		wantBid  float64
	}{
		{name: "empty", text: "", wantConf: 0, wantBid: 0},
		{name: "grade only", text: "this one is a psa 9", wantConf: 0.4, wantBid: 0},
		{name: "bid in words", text: "we're at 75 dollars", wantConf: 0.2, wantBid: 75},
		{name: "nothing identifying", text: "going once going twice", wantConf: 0.1, wantBid: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := ParseTranscript(tt.text)
			assert.InDelta(t, tt.wantConf, res.Confidence, 1e-9)
			assert.InDelta(t, tt.wantBid, res.SpokenBid, 1e-9)
		})
	}
}

// TestParseAuctionText は画面上のオークション情報の抽出を検証します。
func TestParseAuctionText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want entity.AuctionState
	}{
		{
			name: "bid count and minutes",
			text: "Current bid: $1,234.56 - 12 bids - 4m left",
			want: entity.AuctionState{CurrentBid: 1234.56, BidCount: 12, TimeRemaining: 4 * time.Minute},
		},
		{
			name: "starting price is not the current bid",
			text: "Starting bid $25 Current $40 1:23 left 3 bids",
			want: entity.AuctionState{CurrentBid: 40, StartingPrice: 25, BidCount: 3, TimeRemaining: 83 * time.Second},
		},
		{
			name: "nothing recognised",
			text: "LIVE NOW",
			want: entity.AuctionState{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseAuctionText(tt.text))
		})
	}
}
