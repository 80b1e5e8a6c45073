package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cardsignal_backend/internal/feature/identity/domain/entity"
)

var (
	// yearPattern は1950〜2029年の発行年に一致します。
	yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20[0-2]\d)\b`)
	// gradePattern は "PSA 10" や "BGS 9.5" などの鑑定グレードに一致します。
	gradePattern = regexp.MustCompile(`(?i)\b(PSA|BGS|SGC|CGC)\s*(\d{1,2}(?:\.5)?)\b`)
	// numberPattern は "#27" 形式のカード番号に一致します。
	numberPattern = regexp.MustCompile(`#\s?([A-Za-z]{0,3}-?\d{1,4}[A-Za-z]?)\b`)
	// nameWordPattern は選手名を構成する語（"Trout"、"McDavid"、"M."）に一致します。
	nameWordPattern  = regexp.MustCompile(`^(?:[A-Z][a-z]+(?:[A-Z][a-z]+)?(?:['\-][A-Za-z]+)?|[A-Z]\.)$`)
	rookiePattern    = regexp.MustCompile(`(?i)\b(rookie|rc)\b`)
	autographPattern = regexp.MustCompile(`(?i)\b(auto|autograph|autographed|signed)\b`)
	parallelPattern  = regexp.MustCompile(`(?i)\b(?:refractor|parallel|silver|gold|holo)\b|/\d{1,4}\b`)

	bidPattern       = regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)
	bidCountPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*bids?\b`)
	startPattern     = regexp.MustCompile(`(?i)\bstart(?:ing)?(?:\s+(?:bid|price))?\s*[:@]?\s*\$\s?(\d+(?:\.\d{1,2})?)`)
	clockPattern     = regexp.MustCompile(`\b(\d{1,2}):([0-5]\d)\b`)
	durationPattern  = regexp.MustCompile(`(?i)\b(\d{1,3})\s*([hms])\b`)
	spokenBidPattern = regexp.MustCompile(`(?i)(?:\$\s?(\d{1,5}(?:\.\d{1,2})?)|\b(\d{1,5})\s*(?:dollars|bucks)\b)`)
)

// setKeywords は主要なトレーディングカードのセット名です。
var setKeywords = []string{
	"upper deck", "topps chrome", "bowman chrome", "topps", "panini", "bowman",
	"prizm", "select", "optic", "donruss", "fleer", "mosaic", "chronicles",
}

// nameStopWords は選手名として扱わない語です。
var nameStopWords = map[string]struct{}{
	"psa": {}, "bgs": {}, "sgc": {}, "cgc": {}, "card": {}, "cards": {}, "lot": {},
	"bid": {}, "bids": {}, "time": {}, "rookie": {}, "auto": {}, "buy": {}, "now": {},
	"live": {}, "shipping": {}, "sold": {}, "starting": {}, "gem": {}, "mint": {},
	"thank": {}, "you": {}, "going": {}, "once": {}, "twice": {}, "refractor": {},
	"topps": {}, "panini": {}, "bowman": {}, "prizm": {}, "select": {}, "optic": {},
	"donruss": {}, "fleer": {}, "mosaic": {}, "chronicles": {}, "upper": {}, "deck": {},
	"chrome": {}, "silver": {}, "gold": {}, "holo": {}, "parallel": {}, "update": {},
	"series": {}, "base": {}, "edition": {}, "current": {}, "left": {}, "signed": {},
}

const (
	// setConfidenceWeight はキーワード一致によるセット名の信頼度係数です。
	setConfidenceWeight = 0.9
	// flagConfidenceWeight は単語一致によるフラグの信頼度係数です。
	flagConfidenceWeight = 0.8
	// audioNameWeight は音声から推定した選手名の信頼度係数です。
	audioNameWeight = 0.75
)

// ParseVisualText は文字認識結果のテキストから映像由来の属性を抽出します。
// 各フィールドの信頼度は認識エンジン全体の信頼度に由来します。
func ParseVisualText(text string, ocrConfidence float64) entity.EntityAttributes {
	return parseAttributes(text, ocrConfidence, 1.0, entity.SourceVisual)
}

// VisualAttributes は画面認識結果から映像由来の属性を求めます。
// エンジンが識別した属性を優先し、未観測のフィールドだけをテキストの解析結果で補います。
func VisualAttributes(out entity.VisualText) entity.EntityAttributes {
	structured := out.Attributes.OnlyPresent(entity.SourceVisual)
	if out.Text == "" {
		return structured
	}
	return structured.FillFrom(ParseVisualText(out.Text, out.Confidence))
}

// TranscriptResult は音声文字起こしから抽出した結果です。
type TranscriptResult struct {
	Attributes entity.EntityAttributes
	SpokenBid  float64 // 実況で読み上げられた入札額（0は不明）
	Confidence float64 // 抽出結果の完全性に基づく推定信頼度
}

// ParseTranscript は文字起こしテキストから音声由来の属性を抽出します。
// 信頼度はグレード0.4、年0.2、セット0.2、入札額0.2の加点方式で算出します。
func ParseTranscript(text string) TranscriptResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return TranscriptResult{}
	}

	bid := parseSpokenBid(text)
	lower := strings.ToLower(text)

	var score float64
	if gradePattern.MatchString(text) {
		score += 0.4
	}
	if yearPattern.MatchString(text) {
		score += 0.2
	}
	if findSet(lower) != "" {
		score += 0.2
	}
	if bid > 0 {
		score += 0.2
	}
	if score == 0 {
		// フラグや名前だけでも「何か言及があった」ことは残す
		score = 0.1
	}
	if score > 1 {
		score = 1
	}

	return TranscriptResult{
		Attributes: parseAttributes(text, score, audioNameWeight, entity.SourceAudio),
		SpokenBid:  bid,
		Confidence: score,
	}
}

// ParseAuctionText は画面テキストから入札額・残り時間・入札件数を抽出します。
func ParseAuctionText(text string) entity.AuctionState {
	var st entity.AuctionState

	if m := startPattern.FindStringSubmatch(text); m != nil {
		st.StartingPrice = parseMoney(m[1])
		// 開始価格の表記は現在価格の候補から除外する
		text = strings.Replace(text, m[0], " ", 1)
	}
	if m := bidPattern.FindStringSubmatch(text); m != nil {
		st.CurrentBid = parseMoney(m[1])
	}
	if m := bidCountPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			st.BidCount = n
		}
	}
	st.TimeRemaining = parseTimeRemaining(text)
	return st
}

func parseAttributes(text string, confidence, nameWeight float64, src entity.Source) entity.EntityAttributes {
	var attrs entity.EntityAttributes
	text = strings.TrimSpace(text)
	if text == "" || confidence <= 0 {
		return attrs
	}
	lower := strings.ToLower(text)

	if name := findName(text); name != "" {
		attrs.Name = entity.NewTextField(name, confidence*nameWeight, src)
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		attrs.Era = entity.NewTextField(m[1], confidence, src)
	}
	if m := gradePattern.FindStringSubmatch(text); m != nil {
		attrs.Grade = entity.NewTextField(strings.ToUpper(m[1])+" "+m[2], confidence, src)
	}
	if m := numberPattern.FindStringSubmatch(text); m != nil {
		attrs.Number = entity.NewTextField(m[1], confidence, src)
	}
	if set := findSet(lower); set != "" {
		attrs.Set = entity.NewTextField(titleCase(set), confidence*setConfidenceWeight, src)
	}
	if rookiePattern.MatchString(text) {
		attrs.Rookie = entity.NewFlagField(true, confidence*flagConfidenceWeight, src)
	}
	if autographPattern.MatchString(text) {
		attrs.Autograph = entity.NewFlagField(true, confidence*flagConfidenceWeight, src)
	}
	if parallelPattern.MatchString(text) {
		attrs.Parallel = entity.NewFlagField(true, confidence*flagConfidenceWeight, src)
	}
	return attrs
}

// findName は大文字で始まる語が2語以上連続する最初の並びを選手名とみなします。
// 3語を超える場合は先頭3語までを採用します。
func findName(text string) string {
	var run []string
	flush := func() string {
		defer func() { run = run[:0] }()
		if len(run) < 2 {
			return ""
		}
		if len(run) > 3 {
			run = run[:3]
		}
		return strings.Join(run, " ")
	}

	for _, w := range strings.Fields(text) {
		word := strings.TrimRight(w, ",;:!?")
		if !strings.HasSuffix(word, ".") || len(word) != 2 {
			word = strings.TrimRight(word, ".")
		}
		if nameWordPattern.MatchString(word) && !isStopWord(word) {
			run = append(run, word)
			continue
		}
		if name := flush(); name != "" {
			return name
		}
	}
	return flush()
}

func isStopWord(word string) bool {
	_, ok := nameStopWords[strings.ToLower(strings.Trim(word, ".'-"))]
	return ok
}

func findSet(lower string) string {
	for _, kw := range setKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

func parseSpokenBid(text string) float64 {
	for _, m := range spokenBidPattern.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		// 年号の読み上げは入札額ではない
		if yearPattern.MatchString(raw) && len(raw) == 4 {
			continue
		}
		if v := parseMoney(raw); v > 0 {
			return v
		}
	}
	return 0
}

func parseTimeRemaining(text string) time.Duration {
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		return time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
	}
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch strings.ToLower(m[2]) {
		case "h":
			return time.Duration(n) * time.Hour
		case "m":
			return time.Duration(n) * time.Minute
		case "s":
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

func parseMoney(raw string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
