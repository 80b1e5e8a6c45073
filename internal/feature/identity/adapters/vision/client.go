// Package vision はGoogle Cloud Vision APIを使用した文字認識クライアントを提供します。
package vision

import (
	"context"
	"fmt"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"cardsignal_backend/internal/feature/identity/domain/entity"
	"cardsignal_backend/internal/feature/identity/usecase"
)

// defaultConfidence はページ信頼度が返らなかった場合に用いる信頼度です。
const defaultConfidence = 0.5

// annotateFunc はBatchAnnotateImagesの呼び出しです。テストで差し替えます。
type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionTextExtractor はGoogle Cloud Vision APIで画面上の文字を認識します。
type VisionTextExtractor struct {
	annotate annotateFunc
	closer   func() error
}

// VisionTextExtractorがVisualExtractorを実装していることをコンパイル時に検証します。
var _ usecase.VisualExtractor = (*VisionTextExtractor)(nil)

// NewVisionTextExtractor はADCを使用してVisionTextExtractorの新しいインスタンスを生成します。
func NewVisionTextExtractor(ctx context.Context) (*VisionTextExtractor, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}
	return &VisionTextExtractor{annotate: annotate, closer: client.Close}, nil
}

// Close はVision APIクライアントを解放します。
func (v *VisionTextExtractor) Close() error {
	if v.closer == nil {
		return nil
	}
	return v.closer()
}

// Extract はフレーム画像に対してDOCUMENT_TEXT_DETECTIONを実行します。
func (v *VisionTextExtractor) Extract(ctx context.Context, frame []byte, region entity.Region) (entity.VisualText, error) {
	if len(frame) == 0 {
		return entity.VisualText{}, nil
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: frame},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.annotate(ctx, req)
	if err != nil {
		return entity.VisualText{}, fmt.Errorf("vision API request failed: %w", err)
	}

	if len(resp.Responses) == 0 {
		return entity.VisualText{}, nil
	}

	if resp.Responses[0].Error != nil {
		return entity.VisualText{}, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	return textFromResponse(resp.Responses[0], region), nil
}

// textFromResponse は認識結果をVisualTextに変換します。
// 領域指定がある場合は、外接矩形の中心が領域内にある単語だけを残します。
func textFromResponse(res *visionpb.AnnotateImageResponse, region entity.Region) entity.VisualText {
	var text string
	if region.IsZero() {
		if full := res.GetFullTextAnnotation(); full != nil {
			text = full.GetText()
		} else if anns := res.GetTextAnnotations(); len(anns) > 0 {
			text = anns[0].GetDescription()
		}
	} else {
		anns := res.GetTextAnnotations()
		words := make([]string, 0, len(anns))
		// 先頭要素は全文なので単語は2番目以降
		for i := 1; i < len(anns); i++ {
			x, y, ok := center(anns[i].GetBoundingPoly())
			if ok && region.Contains(x, y) {
				words = append(words, anns[i].GetDescription())
			}
		}
		text = strings.Join(words, " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return entity.VisualText{}
	}
	return entity.VisualText{Text: text, Confidence: pageConfidence(res.GetFullTextAnnotation())}
}

func center(poly *visionpb.BoundingPoly) (int, int, bool) {
	vs := poly.GetVertices()
	if len(vs) == 0 {
		return 0, 0, false
	}
	var sx, sy int
	for _, v := range vs {
		sx += int(v.GetX())
		sy += int(v.GetY())
	}
	return sx / len(vs), sy / len(vs), true
}

func pageConfidence(full *visionpb.TextAnnotation) float64 {
	var sum float64
	var n int
	for _, p := range full.GetPages() {
		if c := p.GetConfidence(); c > 0 {
			sum += float64(c)
			n++
		}
	}
	if n == 0 {
		return defaultConfidence
	}
	return sum / float64(n)
}
