// Package usecase は解析セッションのライフサイクルと1サイクルの処理（融合→継続→価格→判断）を実装します。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	continuity "cardsignal_backend/internal/feature/continuity/usecase"
	decision "cardsignal_backend/internal/feature/decision/domain/entity"
	identityentity "cardsignal_backend/internal/feature/identity/domain/entity"
	identity "cardsignal_backend/internal/feature/identity/usecase"
	pricing "cardsignal_backend/internal/feature/pricing/domain/entity"
	"cardsignal_backend/internal/feature/session/domain/entity"
)

// PriceResolver は比較販売を解決するサービスのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type PriceResolver interface {
	Resolve(ctx context.Context, attrs identityentity.EntityAttributes, auction identityentity.AuctionState) pricing.ComparableSet
}

// Decider は入札判断ルールのインターフェースです。
type Decider interface {
	Decide(attrs identityentity.EntityAttributes, auction identityentity.AuctionState, comps pricing.ComparableSet) decision.DecisionResult
}

// Explainer は判断結果の補足説明を生成するサービスのインターフェースです。
type Explainer interface {
	Explain(ctx context.Context, result decision.DecisionResult) (string, error)
}

// Recorder はセッションごとの判断履歴の保存先です。
type Recorder interface {
	Record(ctx context.Context, sessionID string, result decision.DecisionResult) error
	History(ctx context.Context, sessionID string) ([]decision.DecisionResult, error)
}

// Publisher は判断結果をライブ購読者に配信します。
type Publisher interface {
	Publish(sessionID string, result decision.DecisionResult)
	CloseSession(sessionID string)
}

// Metrics はセッション処理の計測値を受け取ります。
type Metrics interface {
	CycleCompleted(signal string, elapsed time.Duration)
	CollaboratorFailure(collaborator string)
	SessionsActive(n int)
}

// Config はセッション処理のタイムアウトと鮮度の設定です。
type Config struct {
	VisualTimeout   time.Duration `mapstructure:"visual_timeout"`
	AudioTimeout    time.Duration `mapstructure:"audio_timeout"`
	ResolveTimeout  time.Duration `mapstructure:"resolve_timeout"`
	ExplainTimeout  time.Duration `mapstructure:"explain_timeout"`
	AudioMaxAge     time.Duration `mapstructure:"audio_max_age"`     // これより古い文字起こしは根拠にしない
	TextConfidence  float64       `mapstructure:"text_confidence"`   // 認識済みテキストに信頼度がない場合の既定値
	MaxAudioWorkers int           `mapstructure:"max_audio_workers"` // セッションごとの同時文字起こし数
}

// DefaultConfig は既定の設定を返します。
func DefaultConfig() Config {
	return Config{
		VisualTimeout:   5 * time.Second,
		AudioTimeout:    20 * time.Second,
		ResolveTimeout:  12 * time.Second,
		ExplainTimeout:  3 * time.Second,
		AudioMaxAge:     15 * time.Second,
		TextConfidence:  0.8,
		MaxAudioWorkers: 2,
	}
}

// Validate は設定値の整合性を検証します。
func (c Config) Validate() error {
	switch {
	case c.VisualTimeout <= 0, c.AudioTimeout <= 0, c.ResolveTimeout <= 0, c.ExplainTimeout <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.AudioMaxAge <= 0:
		return fmt.Errorf("%w: audio_max_age must be positive, got %v", ErrInvalidConfig, c.AudioMaxAge)
	case c.TextConfidence <= 0 || c.TextConfidence > 1:
		return fmt.Errorf("%w: text_confidence must be in (0,1], got %v", ErrInvalidConfig, c.TextConfidence)
	case c.MaxAudioWorkers < 1:
		return fmt.Errorf("%w: max_audio_workers must be >= 1, got %d", ErrInvalidConfig, c.MaxAudioWorkers)
	}
	return nil
}

// liveSession は1つのセッションが所有する状態です。セッション間で共有しません。
type liveSession struct {
	entity.Session

	ctx     context.Context
	cancel  context.CancelFunc
	tracker *continuity.Tracker
	audio   audioSlot
	stopped atomic.Bool

	cycleMu sync.Mutex // サイクルは1本ずつ
	cycle   int64

	audioSem chan struct{}
	workMu   sync.Mutex // stoppedの確認とworkers.Addを直列化する
	workers  sync.WaitGroup
}

// Service は解析セッションを管理します。
type Service struct {
	cfg        Config
	trackerCfg continuity.Config

	visual      identity.VisualExtractor // nilの場合は認識済みテキストのみ
	transcriber identity.Transcriber     // nilの場合は文字起こし済みテキストのみ
	resolver    PriceResolver
	decider     Decider
	explainer   Explainer // nilの場合は補足説明なし
	recorder    Recorder
	publisher   Publisher
	metrics     Metrics

	mu       sync.RWMutex
	sessions map[string]*liveSession

	newID func() string
	now   func() time.Time
}

// Deps はServiceの依存関係です。Resolver、Decider、Recorder以外は省略できます。
type Deps struct {
	Visual      identity.VisualExtractor
	Transcriber identity.Transcriber
	Resolver    PriceResolver
	Decider     Decider
	Explainer   Explainer
	Recorder    Recorder
	Publisher   Publisher
	Metrics     Metrics
}

// NewService はServiceの新しいインスタンスを生成します。
func NewService(cfg Config, trackerCfg continuity.Config, deps Deps) *Service {
	if deps.Publisher == nil {
		deps.Publisher = noopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	return &Service{
		cfg:         cfg,
		trackerCfg:  trackerCfg,
		visual:      deps.Visual,
		transcriber: deps.Transcriber,
		resolver:    deps.Resolver,
		decider:     deps.Decider,
		explainer:   deps.Explainer,
		recorder:    deps.Recorder,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		sessions:    make(map[string]*liveSession),
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// StartSession は新しいセッションを開始します。
// セッションの処理はリクエストのコンテキストではなくセッション自身のコンテキストに紐づきます。
func (s *Service) StartSession(_ context.Context) (entity.Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		Session:  entity.Session{ID: s.newID(), StartedAt: s.now()},
		ctx:      ctx,
		cancel:   cancel,
		tracker:  continuity.NewTracker(s.trackerCfg),
		audioSem: make(chan struct{}, s.cfg.MaxAudioWorkers),
	}

	s.mu.Lock()
	s.sessions[ls.ID] = ls
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionsActive(n)
	slog.Info("session started", "session_id", ls.ID)
	return ls.Session, nil
}

// StopSession はセッションを停止します。
// 実行中の文字起こし・価格解決をキャンセルし、継続状態を消去します。履歴は残ります。
func (s *Service) StopSession(_ context.Context, id string) error {
	s.mu.Lock()
	ls, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.stop(ls)
	s.metrics.SessionsActive(n)
	slog.Info("session stopped", "session_id", id, "cycles", atomic.LoadInt64(&ls.cycle))
	return nil
}

// Shutdown は全セッションを停止します。
func (s *Service) Shutdown(_ context.Context) {
	s.mu.Lock()
	live := make([]*liveSession, 0, len(s.sessions))
	for id, ls := range s.sessions {
		live = append(live, ls)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, ls := range live {
		s.stop(ls)
	}
	s.metrics.SessionsActive(0)
}

func (s *Service) stop(ls *liveSession) {
	if !ls.stopped.CompareAndSwap(false, true) {
		return
	}
	ls.cancel()
	ls.workMu.Lock()
	ls.workMu.Unlock()
	ls.workers.Wait()

	// 実行中のサイクルが終わってから継続状態を消す
	ls.cycleMu.Lock()
	ls.tracker.Reset()
	ls.audio.clear()
	ls.cycleMu.Unlock()

	s.publisher.CloseSession(ls.ID)
}

// GetHistory はセッションの判断履歴を新しい順に返します。停止済みのセッションも参照できます。
func (s *Service) GetHistory(ctx context.Context, id string) ([]decision.DecisionResult, error) {
	out, err := s.recorder.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(out) == 0 && !s.IsLive(id) {
		return nil, ErrSessionNotFound
	}
	return out, nil
}

// SubmitAudio は音声チャンクを受け付け、セッションのコンテキストで非同期に文字起こしします。
// 結果は次以降のサイクルで音声の根拠として使われます。
func (s *Service) SubmitAudio(_ context.Context, id string, chunk []byte) error {
	ls, err := s.lookup(id)
	if err != nil {
		return err
	}
	if s.transcriber == nil {
		return fmt.Errorf("%w: transcriber", ErrEngineUnavailable)
	}
	if len(chunk) == 0 {
		return nil
	}

	select {
	case ls.audioSem <- struct{}{}:
	default:
		slog.Warn("audio chunk dropped, transcription backlog full", "session_id", id)
		return nil
	}

	ls.workMu.Lock()
	if ls.stopped.Load() {
		ls.workMu.Unlock()
		<-ls.audioSem
		return ErrSessionStopped
	}
	ls.workers.Add(1)
	ls.workMu.Unlock()

	at := s.now()
	go func() {
		defer ls.workers.Done()
		defer func() { <-ls.audioSem }()

		if res, ok := s.transcribe(ls.ctx, chunk); ok && !ls.stopped.Load() {
			ls.audio.set(res, at)
		}
	}()
	return nil
}

// ProcessCycle は1サイクル分の観測から判断結果を生成し、履歴と購読者に送ります。
// 外部連携先の失敗はサイクルを中断せず、根拠なしとして扱います。
func (s *Service) ProcessCycle(ctx context.Context, id string, in entity.CycleInput) (decision.DecisionResult, error) {
	ls, err := s.lookup(id)
	if err != nil {
		return decision.DecisionResult{}, err
	}

	ls.cycleMu.Lock()
	defer ls.cycleMu.Unlock()
	if ls.stopped.Load() {
		return decision.DecisionResult{}, ErrSessionStopped
	}

	// リクエストかセッションのどちらかが終わればサイクルも打ち切る
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(ls.ctx, cancel)
	defer stopWatch()

	start := s.now()
	cycle := atomic.AddInt64(&ls.cycle, 1)

	var (
		text      identityentity.VisualText
		fresh     identity.TranscriptResult
		freshOK   bool
		g, gctx   = errgroup.WithContext(cctx)
		audioSeen = s.now()
	)
	g.Go(func() error {
		text = s.extractText(gctx, in)
		return nil
	})
	g.Go(func() error {
		fresh, freshOK = s.cycleAudio(gctx, in)
		return nil
	})
	_ = g.Wait()

	if freshOK {
		ls.audio.set(fresh, audioSeen)
	}
	heard, _ := ls.audio.latest(s.now(), s.cfg.AudioMaxAge)

	visualAttrs := identity.VisualAttributes(text)
	fused := identity.Fuse(visualAttrs, heard.Attributes)
	res := ls.tracker.Observe(fused, s.now())

	auction := buildAuction(in.Auction, identity.ParseAuctionText(text.Text), heard.SpokenBid, s.now())
	comps := s.resolve(cctx, res, auction)

	result := s.decider.Decide(res.Entity, auction, comps)
	result.Continuity = string(res.State)
	result.Cycle = cycle
	result.SessionID = id
	result.Explanation = s.explain(cctx, result)

	if ls.stopped.Load() {
		return decision.DecisionResult{}, ErrSessionStopped
	}
	if err := s.recorder.Record(ctx, id, result); err != nil {
		slog.Warn("failed to record decision", "session_id", id, "cycle", cycle, "error", err)
	}
	s.publisher.Publish(id, result)
	s.metrics.CycleCompleted(string(result.Signal), s.now().Sub(start))

	slog.Debug("cycle processed",
		"session_id", id,
		"cycle", cycle,
		"signal", result.Signal,
		"reason", result.Reason,
		"continuity", res.State,
		"comparables", comps.Count(),
	)
	return result, nil
}

func (s *Service) lookup(id string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ls.stopped.Load() {
		return nil, ErrSessionStopped
	}
	return ls, nil
}

// IsLive はセッションが開始済みで停止されていないかどうかを返します。
func (s *Service) IsLive(id string) bool {
	_, err := s.lookup(id)
	return err == nil
}

// extractText はクライアント側の認識結果を優先し、なければ認識エンジンを呼び出します。
func (s *Service) extractText(ctx context.Context, in entity.CycleInput) identityentity.VisualText {
	if in.FrameText != "" || !in.FrameAttributes.IsEmpty() {
		conf := in.FrameConfidence
		if conf <= 0 || conf > 1 {
			conf = s.cfg.TextConfidence
		}
		return identityentity.VisualText{Text: in.FrameText, Confidence: conf, Attributes: in.FrameAttributes}
	}
	if len(in.Frame) == 0 || s.visual == nil {
		return identityentity.VisualText{}
	}

	vctx, cancel := context.WithTimeout(ctx, s.cfg.VisualTimeout)
	defer cancel()
	out, err := safeCall(func() (identityentity.VisualText, error) { return s.visual.Extract(vctx, in.Frame, in.Region) })
	if err != nil {
		slog.Warn("visual extraction failed", "error", err)
		s.metrics.CollaboratorFailure("visual")
		return identityentity.VisualText{}
	}
	return out
}

// cycleAudio はサイクルに添付された音声を処理します。添付がなければfalseです。
func (s *Service) cycleAudio(ctx context.Context, in entity.CycleInput) (identity.TranscriptResult, bool) {
	if in.Transcript != "" {
		return identity.ParseTranscript(in.Transcript), true
	}
	if len(in.AudioChunk) == 0 || s.transcriber == nil {
		return identity.TranscriptResult{}, false
	}
	return s.transcribe(ctx, in.AudioChunk)
}

func (s *Service) transcribe(ctx context.Context, chunk []byte) (identity.TranscriptResult, bool) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AudioTimeout)
	defer cancel()
	text, err := safeCall(func() (string, error) { return s.transcriber.Transcribe(actx, chunk) })
	if err != nil {
		slog.Warn("audio transcription failed", "error", err)
		s.metrics.CollaboratorFailure("transcriber")
		return identity.TranscriptResult{}, false
	}
	return identity.ParseTranscript(text), true
}

// resolve は価格解決を別のゴルーチンで実行し、タイムアウトした場合は検索失敗として扱います。
func (s *Service) resolve(ctx context.Context, res continuity.Resolution, auction identityentity.AuctionState) pricing.ComparableSet {
	if res.State == continuity.StateUnknown || !res.Entity.HasName() {
		return pricing.ComparableSet{Status: pricing.StatusNoData}
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	defer cancel()

	ch := make(chan pricing.ComparableSet, 1)
	go func() {
		set, err := safeCall(func() (pricing.ComparableSet, error) {
			return s.resolver.Resolve(rctx, res.Entity, auction), nil
		})
		if err != nil {
			slog.Warn("price resolver failed", "error", err)
			set = pricing.ComparableSet{Status: pricing.StatusLookupFailed}
		}
		ch <- set
	}()

	select {
	case set := <-ch:
		return set
	case <-rctx.Done():
		slog.Warn("price resolution timed out", "error", rctx.Err())
		s.metrics.CollaboratorFailure("resolver")
		return pricing.ComparableSet{Status: pricing.StatusLookupFailed, FetchedAt: s.now()}
	}
}

// explain は判断結果の補足説明を生成します。失敗やタイムアウトの場合は空文字です。
func (s *Service) explain(ctx context.Context, result decision.DecisionResult) string {
	if s.explainer == nil || result.IsUnknown() {
		return ""
	}

	ectx, cancel := context.WithTimeout(ctx, s.cfg.ExplainTimeout)
	defer cancel()

	ch := make(chan string, 1)
	go func() {
		text, err := safeCall(func() (string, error) { return s.explainer.Explain(ectx, result) })
		if err != nil {
			slog.Warn("decision explanation failed", "error", err)
			s.metrics.CollaboratorFailure("explainer")
			text = ""
		}
		ch <- text
	}()

	select {
	case text := <-ch:
		return text
	case <-ectx.Done():
		slog.Warn("decision explanation timed out", "error", ectx.Err())
		s.metrics.CollaboratorFailure("explainer")
		return ""
	}
}

// buildAuction はクライアントの値を優先し、認識テキスト、実況の入札額の順に補います。
func buildAuction(raw entity.RawAuction, parsed identityentity.AuctionState, spokenBid float64, now time.Time) identityentity.AuctionState {
	out := identityentity.AuctionState{
		CurrentBid:    raw.CurrentBid,
		TimeRemaining: raw.TimeRemaining,
		BidCount:      raw.BidCount,
		StartingPrice: raw.StartingPrice,
		ObservedAt:    now,
	}
	if out.CurrentBid <= 0 {
		out.CurrentBid = parsed.CurrentBid
	}
	if out.CurrentBid <= 0 {
		out.CurrentBid = spokenBid
	}
	if out.CurrentBid < 0 {
		out.CurrentBid = 0
	}
	if out.TimeRemaining <= 0 {
		out.TimeRemaining = parsed.TimeRemaining
	}
	if out.BidCount <= 0 {
		out.BidCount = parsed.BidCount
	}
	if out.StartingPrice <= 0 {
		out.StartingPrice = parsed.StartingPrice
	}
	return out
}

// safeCall は外部連携先の呼び出しでpanicが起きてもエラーとして返します。
func safeCall[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("collaborator panic: %v", p)
		}
	}()
	return fn()
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, decision.DecisionResult) {}
func (noopPublisher) CloseSession(string)                     {}

type noopMetrics struct{}

func (noopMetrics) CycleCompleted(string, time.Duration) {}
func (noopMetrics) CollaboratorFailure(string)           {}
func (noopMetrics) SessionsActive(int)                   {}
