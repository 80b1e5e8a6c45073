// Package usecase はpricingフィーチャーのビジネスロジック（比較販売価格の解決）を実装します。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
	"cardsignal_backend/internal/feature/pricing/domain/entity"
)

// ComparableCache は指紋をキーに比較販売の結果を保持するキャッシュのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type ComparableCache interface {
	// Get はTTL内のエントリを返します。期限切れや未登録の場合はfalseを返します。
	Get(ctx context.Context, fingerprint string) (entity.ComparableSet, bool, error)
	// Put はエントリを書き込みます。同じ指紋への書き込みは後勝ちです。
	Put(ctx context.Context, fingerprint string, set entity.ComparableSet) error
}

// Marketplace は過去の販売実績を検索する外部サービスのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Marketplace interface {
	// Search はクエリに一致する販売実績を返します。件数の上限は実装側で制限します。
	Search(ctx context.Context, query string) ([]entity.Listing, error)
}

// QueryBuilder は属性から検索クエリを生成する補助サービスのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type QueryBuilder interface {
	BuildQuery(ctx context.Context, attrs identity.EntityAttributes) (string, error)
}

// ResolverMetrics は価格解決の計測値を受け取るインターフェースです。
type ResolverMetrics interface {
	CacheLookup(hit bool)
	CollaboratorFailure(collaborator string)
}

// ResolverConfig は価格解決のしきい値とタイムアウトです。
type ResolverConfig struct {
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"` // 0〜100
	SearchTimeout       time.Duration `mapstructure:"search_timeout"`
	AdvisoryTimeout     time.Duration `mapstructure:"advisory_timeout"`
}

// DefaultResolverConfig は既定の設定を返します。
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SimilarityThreshold: 70,
		SearchTimeout:       8 * time.Second,
		AdvisoryTimeout:     3 * time.Second,
	}
}

// Validate は設定値の整合性を検証します。
func (c ResolverConfig) Validate() error {
	switch {
	case c.SimilarityThreshold < 0 || c.SimilarityThreshold > 100:
		return fmt.Errorf("%w: similarity_threshold must be in [0,100], got %v", ErrInvalidConfig, c.SimilarityThreshold)
	case c.SearchTimeout <= 0:
		return fmt.Errorf("%w: search_timeout must be positive, got %v", ErrInvalidConfig, c.SearchTimeout)
	case c.AdvisoryTimeout <= 0:
		return fmt.Errorf("%w: advisory_timeout must be positive, got %v", ErrInvalidConfig, c.AdvisoryTimeout)
	}
	return nil
}

// Resolver はキャッシュ・マーケットプレイス・クエリ生成を組み合わせて比較販売価格を解決します。
type Resolver struct {
	cfg     ResolverConfig
	cache   ComparableCache
	market  Marketplace
	advisor QueryBuilder // nilの場合は決定的なクエリのみ
	metrics ResolverMetrics

	group singleflight.Group
	now   func() time.Time
}

// NewResolver はResolverの新しいインスタンスを生成します。advisorとmetricsはnilでも構いません。
func NewResolver(cfg ResolverConfig, cache ComparableCache, market Marketplace, advisor QueryBuilder, metrics ResolverMetrics) *Resolver {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Resolver{
		cfg:     cfg,
		cache:   cache,
		market:  market,
		advisor: advisor,
		metrics: metrics,
		now:     time.Now,
	}
}

// Resolve は属性に対応する比較販売を返します。
// 外部連携先のエラー・タイムアウト・panicは呼び出し元に伝播せず、lookup_failedの結果になります。
// 同じ指紋の同時解決は1回の外部呼び出しにまとめられます。
// まとめられた解決は呼び出し元のキャンセルから切り離して実行され、
// ctxが先に終了した呼び出し元だけがlookup_failedを受け取ります。
func (r *Resolver) Resolve(ctx context.Context, attrs identity.EntityAttributes, _ identity.AuctionState) entity.ComparableSet {
	fp := Fingerprint(attrs)

	if set, ok := r.lookup(ctx, fp); ok {
		return set
	}

	ch := r.group.DoChan(fp, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sharedTimeout())
		defer cancel()

		// 直前に別の解決が完了していればその結果を使う
		if set, ok, err := r.cache.Get(sctx, fp); err == nil && ok {
			return set, nil
		}
		set := r.resolve(sctx, attrs)
		// 検索失敗は次のサイクルで再試行させるためキャッシュしない
		if !set.LookupFailed() {
			if err := r.cache.Put(sctx, fp, set); err != nil {
				slog.Warn("comparable cache put failed", "fingerprint", fp, "error", err)
			}
		}
		return set, nil
	})

	select {
	case res := <-ch:
		return res.Val.(entity.ComparableSet)
	case <-ctx.Done():
		slog.Warn("comparable resolution abandoned by caller", "fingerprint", fp, "error", ctx.Err())
		return entity.ComparableSet{Query: DeterministicQuery(attrs), Status: entity.StatusLookupFailed, FetchedAt: r.now()}
	}
}

// sharedTimeout は切り離した解決全体の上限です。補助クエリ1回と検索2回（再検索を含む）分です。
func (r *Resolver) sharedTimeout() time.Duration {
	return r.cfg.AdvisoryTimeout + 2*r.cfg.SearchTimeout
}

func (r *Resolver) lookup(ctx context.Context, fp string) (entity.ComparableSet, bool) {
	set, ok, err := r.cache.Get(ctx, fp)
	if err != nil {
		slog.Warn("comparable cache get failed", "fingerprint", fp, "error", err)
		ok = false
	}
	r.metrics.CacheLookup(ok)
	return set, ok
}

func (r *Resolver) resolve(ctx context.Context, attrs identity.EntityAttributes) entity.ComparableSet {
	query := r.buildQuery(ctx, attrs)
	if query == "" {
		return entity.ComparableSet{Status: entity.StatusNoData, FetchedAt: r.now()}
	}

	sales, skipped, err := r.searchFiltered(ctx, query)
	if err != nil {
		return entity.ComparableSet{Query: query, Status: entity.StatusLookupFailed, FetchedAt: r.now()}
	}

	broadened := false
	if len(sales) == 0 {
		// 再検索は1回だけ。番号とグレードを外す
		if broad := BroadenedQuery(attrs); broad != "" && broad != query {
			slog.Info("no comparables, retrying with broadened query", "query", query, "broadened", broad)
			query, broadened = broad, true
			sales, skipped, err = r.searchFiltered(ctx, query)
			if err != nil {
				return entity.ComparableSet{Query: query, Status: entity.StatusLookupFailed, Broadened: true, FetchedAt: r.now()}
			}
		}
	}

	status := entity.StatusOK
	if len(sales) == 0 {
		status = entity.StatusNoData
		sales = nil
		skipped = false
	}
	return entity.ComparableSet{
		Sales:         sales,
		Query:         query,
		FetchedAt:     r.now(),
		Status:        status,
		Broadened:     broadened,
		FilterSkipped: skipped,
	}
}

// buildQuery は補助サービスのクエリを優先し、使えない場合は決定的な規則にフォールバックします。
func (r *Resolver) buildQuery(ctx context.Context, attrs identity.EntityAttributes) string {
	if r.advisor != nil && attrs.HasName() {
		actx, cancel := context.WithTimeout(ctx, r.cfg.AdvisoryTimeout)
		q, err := safeCall(func() (string, error) { return r.advisor.BuildQuery(actx, attrs) })
		cancel()
		if q = SanitizeQuery(q); err == nil && q != "" {
			return q
		}
		if err == nil {
			err = ErrEmptyQuery
		}
		slog.Warn("advisory query builder failed, using deterministic query", "error", err)
		r.metrics.CollaboratorFailure("advisory")
	}
	return DeterministicQuery(attrs)
}

// searchFiltered は検索結果を類似度でフィルタします。
// フィルタで全件が除外された場合は未フィルタの結果を返し、skippedをtrueにします。
func (r *Resolver) searchFiltered(ctx context.Context, query string) (sales []entity.Sale, skipped bool, err error) {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	listings, err := safeCall(func() ([]entity.Listing, error) { return r.market.Search(sctx, query) })
	if err != nil {
		slog.Warn("marketplace search failed", "query", query, "error", err)
		r.metrics.CollaboratorFailure("marketplace")
		return nil, false, err
	}

	all := make([]entity.Sale, 0, len(listings))
	kept := make([]entity.Sale, 0, len(listings))
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}
		sale := entity.Sale{Price: l.Price, Title: l.Title, Source: l.Source}
		all = append(all, sale)
		if TokenSetRatio(l.Title, query) >= r.cfg.SimilarityThreshold {
			kept = append(kept, sale)
		}
	}

	if len(kept) == 0 && len(all) > 0 {
		slog.Info("similarity filter removed every listing, keeping unfiltered set", "query", query, "count", len(all))
		return all, true, nil
	}
	return kept, false, nil
}

// safeCall は外部連携先の呼び出しでpanicが起きてもエラーとして返します。
func safeCall[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrCollaboratorPanic, p)
		}
	}()
	return fn()
}

type noopMetrics struct{}

func (noopMetrics) CacheLookup(bool)           {}
func (noopMetrics) CollaboratorFailure(string) {}
