package vision

import (
	"context"
	"errors"
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignal_backend/internal/feature/identity/domain/entity"
)

func word(text string, x, y int32) *visionpb.EntityAnnotation {
	return &visionpb.EntityAnnotation{
		Description: text,
		BoundingPoly: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
			{X: x, Y: y}, {X: x + 10, Y: y}, {X: x + 10, Y: y + 10}, {X: x, Y: y + 10},
		}},
	}
}

func sampleResponse() *visionpb.AnnotateImageResponse {
	return &visionpb.AnnotateImageResponse{
		TextAnnotations: []*visionpb.EntityAnnotation{
			{Description: "Mike Trout PSA 10\n$150"},
			word("Mike", 0, 0),
			word("Trout", 20, 0),
			word("PSA", 40, 0),
			word("10", 60, 0),
			word("$150", 0, 200),
		},
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text:  "Mike Trout PSA 10\n$150",
			Pages: []*visionpb.Page{{Confidence: 0.9}, {Confidence: 0.7}},
		},
	}
}

// TestTextFromResponse は領域指定による単語の絞り込みと信頼度の算出を検証します。
func TestTextFromResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		res      *visionpb.AnnotateImageResponse
		region   entity.Region
		wantText string
		wantConf float64
	}{
		{
			name:     "whole frame uses full text",
			res:      sampleResponse(),
			wantText: "Mike Trout PSA 10\n$150",
			wantConf: 0.8,
		},
		{
			name:     "region keeps words whose centre is inside",
			res:      sampleResponse(),
			region:   entity.Region{X: 0, Y: 0, Width: 100, Height: 50},
			wantText: "Mike Trout PSA 10",
			wantConf: 0.8,
		},
		{
			name:     "region with no words",
			res:      sampleResponse(),
			region:   entity.Region{X: 500, Y: 500, Width: 10, Height: 10},
			wantText: "",
			wantConf: 0,
		},
		{
			name: "missing page confidence falls back to default",
			res: &visionpb.AnnotateImageResponse{
				TextAnnotations: []*visionpb.EntityAnnotation{{Description: "LIVE"}},
			},
			wantText: "LIVE",
			wantConf: defaultConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := textFromResponse(tt.res, tt.region)
			assert.Equal(t, tt.wantText, got.Text)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-6)
		})
	}
}

// TestVisionTextExtractor_Extract はAPI呼び出しの成功・失敗時の挙動を検証します。
func TestVisionTextExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		calls := 0
		v := &VisionTextExtractor{annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			calls++
			require.Len(t, req.Requests, 1)
			assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, req.Requests[0].Features[0].Type)
			return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{sampleResponse()}}, nil
		}}

		got, err := v.Extract(context.Background(), []byte{0x89, 0x50}, entity.Region{})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Contains(t, got.Text, "Mike Trout")
	})

	t.Run("api error is wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("unavailable")
		v := &VisionTextExtractor{annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return nil, boom
		}}

		_, err := v.Extract(context.Background(), []byte{0x01}, entity.Region{})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty frame skips the engine", func(t *testing.T) {
		t.Parallel()
		v := &VisionTextExtractor{annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			t.Fatal("annotate should not be called")
			return nil, nil
		}}

		got, err := v.Extract(context.Background(), nil, entity.Region{})
		require.NoError(t, err)
		assert.Equal(t, entity.VisualText{}, got)
	})
}
