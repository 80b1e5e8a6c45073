// Package ebay はeBayの落札済み出品ページから販売実績を取得します。
package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardsignal_backend/internal/feature/pricing/domain/entity"
	"cardsignal_backend/internal/feature/pricing/usecase"
	"cardsignal_backend/internal/shared/ratelimiter"
)

const (
	// DefaultBaseURL は検索ページのURLです。
	DefaultBaseURL = "https://www.ebay.com/sch/i.html"
	// DefaultMaxResults は1回の検索で返す最大件数です。
	DefaultMaxResults = 20
	// SourceName は販売実績の取得元名です。
	SourceName = "ebay"
)

var pricePattern = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d{1,2})?)`)

// Config はeBay検索の設定です。
type Config struct {
	BaseURL           string `mapstructure:"base_url"`
	MaxResults        int    `mapstructure:"max_results"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// SoldListingsScraper はeBayの落札済み検索結果をスクレイピングします。
type SoldListingsScraper struct {
	client  *http.Client
	limiter ratelimiter.Limiter
	baseURL string
	max     int
}

// SoldListingsScraperがMarketplaceを実装していることをコンパイル時に検証します。
var _ usecase.Marketplace = (*SoldListingsScraper)(nil)

// NewSoldListingsScraper はSoldListingsScraperの新しいインスタンスを生成します。
func NewSoldListingsScraper(client *http.Client, limiter ratelimiter.Limiter, cfg Config) *SoldListingsScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &SoldListingsScraper{client: client, limiter: limiter, baseURL: cfg.BaseURL, max: cfg.MaxResults}
}

// Search は落札済みの出品をクエリで検索し、ページ上の順序で最大件数まで返します。
func (s *SoldListingsScraper) Search(ctx context.Context, query string) ([]entity.Listing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	pageURL, err := buildSearchURL(s.baseURL, query)
	if err != nil {
		return nil, err
	}
	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return extractListings(doc, s.max), nil
}

func buildSearchURL(base, query string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("_nkw", query)
	q.Set("LH_Sold", "1")
	q.Set("LH_Complete", "1")
	q.Set("_sop", "13") // 終了日の新しい順
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *SoldListingsScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ebay returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractListings(doc *goquery.Document, max int) []entity.Listing {
	out := make([]entity.Listing, 0, max)
	doc.Find("li.s-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := strings.TrimSpace(item.Find(".s-item__title").First().Text())
		title = strings.TrimSpace(strings.TrimPrefix(title, "New Listing"))
		// 検索結果の先頭に挿入されるダミー枠
		if title == "" || strings.EqualFold(title, "Shop on eBay") {
			return true
		}
		price, ok := parsePrice(item.Find(".s-item__price").First().Text())
		if !ok {
			return true
		}
		link, _ := item.Find("a.s-item__link").First().Attr("href")

		out = append(out, entity.Listing{Price: price, Title: title, URL: link, Source: SourceName})
		return len(out) < max
	})
	return out
}

// parsePrice は "$1,234.56" 形式の価格を読み取ります。範囲表記の場合は下限を採用します。
func parsePrice(text string) (float64, bool) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
