package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
)

func TestCycleReq_ToInput(t *testing.T) {
	t.Parallel()

	body := `{
		"frame": "aGVsbG8=",
		"region": {"x": 10, "y": 20, "width": 300, "height": 100},
		"frame_text": "Mike Trout PSA 10",
		"frame_confidence": 0.9,
		"transcript": "fifty dollars",
		"current_bid": 50,
		"time_remaining_seconds": 12.5,
		"bid_count": 7
	}`

	var req CycleReq
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	in := req.ToInput()
	assert.Equal(t, []byte("hello"), in.Frame)
	assert.Equal(t, identity.Region{X: 10, Y: 20, Width: 300, Height: 100}, in.Region)
	assert.Equal(t, "Mike Trout PSA 10", in.FrameText)
	assert.InDelta(t, 0.9, in.FrameConfidence, 1e-9)
	assert.Equal(t, "fifty dollars", in.Transcript)
	assert.Nil(t, in.AudioChunk)
	assert.Equal(t, 50.0, in.Auction.CurrentBid)
	assert.Equal(t, 12500*time.Millisecond, in.Auction.TimeRemaining)
	assert.Equal(t, 7, in.Auction.BidCount)
	assert.Zero(t, in.Auction.StartingPrice)
}

func TestCycleReq_ToInput_NoRegion(t *testing.T) {
	t.Parallel()

	in := CycleReq{}.ToInput()
	assert.True(t, in.Region.IsZero())
}

func TestCycleReq_ToInput_Identity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantConf float64
	}{
		{"own confidence", `{"identity": {"name": "Card A", "grade": "PSA 10", "rookie": true, "confidence": 0.7}, "frame_confidence": 0.9}`, 0.7},
		{"frame confidence", `{"identity": {"name": "Card A", "grade": "PSA 10", "rookie": true}, "frame_confidence": 0.9}`, 0.9},
		{"no confidence", `{"identity": {"name": "Card A", "grade": "PSA 10", "rookie": true}}`, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var req CycleReq
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			attrs := req.ToInput().FrameAttributes
			assert.Equal(t, identity.NewTextField("Card A", tt.wantConf, identity.SourceVisual), attrs.Name)
			assert.Equal(t, "PSA 10", attrs.Grade.Value)
			assert.True(t, attrs.Rookie.Present())
			assert.True(t, attrs.Rookie.Value)
			assert.False(t, attrs.Autograph.Present(), "unset flag stays unobserved")
			assert.False(t, attrs.Era.Present())
		})
	}
}
