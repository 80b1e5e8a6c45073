// Package entity はidentityフィーチャーのドメインモデルを定義します。
package entity

import (
	"strings"
)

// Source はフィールド値の出所を表します。
type Source string

const (
	SourceNone    Source = ""
	SourceVisual  Source = "visual"
	SourceAudio   Source = "audio"
	SourceCarried Source = "carried"
)

// TextField は信頼度付きの文字列フィールドです。
// 値が空の場合は信頼度0（未観測）として扱います。
type TextField struct {
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source,omitempty"`
}

// NewTextField は不変条件（値あり⇔信頼度>0）を満たすTextFieldを生成します。
func NewTextField(value string, confidence float64, src Source) TextField {
	value = strings.TrimSpace(value)
	confidence = clamp01(confidence)
	if value == "" || confidence == 0 {
		return TextField{}
	}
	return TextField{Value: value, Confidence: confidence, Source: src}
}

// Present は値が観測済みかどうかを返します。
func (f TextField) Present() bool {
	return f.Value != "" && f.Confidence > 0
}

// FlagField は信頼度付きの真偽値フィールドです。
// 「観測されなかった」と「falseと観測された」を区別するため、信頼度で存在を判定します。
type FlagField struct {
	Value      bool    `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source,omitempty"`
}

// NewFlagField は不変条件を満たすFlagFieldを生成します。
func NewFlagField(value bool, confidence float64, src Source) FlagField {
	confidence = clamp01(confidence)
	if confidence == 0 {
		return FlagField{}
	}
	return FlagField{Value: value, Confidence: confidence, Source: src}
}

// Present は値が観測済みかどうかを返します。
func (f FlagField) Present() bool {
	return f.Confidence > 0
}

// EntityAttributes はオークション対象アイテムの部分的な属性セットです。
// すべてのフィールドは任意で、未観測の場合はゼロ値になります。
type EntityAttributes struct {
	Name   TextField `json:"name"`   // 選手名などの識別名
	Grade  TextField `json:"grade"`  // 鑑定グレード（例: "PSA 10"）
	Era    TextField `json:"era"`    // 年代・発行年
	Set    TextField `json:"set"`    // セット・コレクション名
	Number TextField `json:"number"` // カード番号

	Rookie    FlagField `json:"rookie"`    // ルーキー（初版）
	Autograph FlagField `json:"autograph"` // 直筆サイン
	Parallel  FlagField `json:"parallel"`  // パラレル・レアバリアント

	// Stale はTTLを超えて持ち越されたエンティティであることを示します。
	Stale bool `json:"stale"`
}

// HasName は識別名が観測済みかどうかを返します。
func (a EntityAttributes) HasName() bool {
	return a.Name.Present()
}

// IsEmpty は観測済みのフィールドが一つもないかどうかを返します。
func (a EntityAttributes) IsEmpty() bool {
	for _, f := range a.textFields() {
		if f.Present() {
			return false
		}
	}
	for _, f := range a.flagFields() {
		if f.Present() {
			return false
		}
	}
	return true
}

// HasSource は指定された出所のフィールドが一つでもあるかどうかを返します。
func (a EntityAttributes) HasSource(src Source) bool {
	for _, f := range a.textFields() {
		if f.Present() && f.Source == src {
			return true
		}
	}
	for _, f := range a.flagFields() {
		if f.Present() && f.Source == src {
			return true
		}
	}
	return false
}

// OnlySource は指定された出所のフィールドだけを残したコピーを返します。
func (a EntityAttributes) OnlySource(src Source) EntityAttributes {
	keepText := func(f TextField) TextField {
		if f.Source == src {
			return f
		}
		return TextField{}
	}
	keepFlag := func(f FlagField) FlagField {
		if f.Source == src {
			return f
		}
		return FlagField{}
	}
	return EntityAttributes{
		Name:      keepText(a.Name),
		Grade:     keepText(a.Grade),
		Era:       keepText(a.Era),
		Set:       keepText(a.Set),
		Number:    keepText(a.Number),
		Rookie:    keepFlag(a.Rookie),
		Autograph: keepFlag(a.Autograph),
		Parallel:  keepFlag(a.Parallel),
	}
}

// OnlyPresent は観測済みのフィールドだけを残し、出所が未設定のフィールドにsrcを付けたコピーを返します。
func (a EntityAttributes) OnlyPresent(src Source) EntityAttributes {
	text := func(f TextField) TextField {
		f.Value = strings.TrimSpace(f.Value)
		if !f.Present() {
			return TextField{}
		}
		if f.Source == SourceNone {
			f.Source = src
		}
		f.Confidence = clamp01(f.Confidence)
		return f
	}
	flag := func(f FlagField) FlagField {
		if !f.Present() {
			return FlagField{}
		}
		if f.Source == SourceNone {
			f.Source = src
		}
		f.Confidence = clamp01(f.Confidence)
		return f
	}
	return EntityAttributes{
		Name:      text(a.Name),
		Grade:     text(a.Grade),
		Era:       text(a.Era),
		Set:       text(a.Set),
		Number:    text(a.Number),
		Rookie:    flag(a.Rookie),
		Autograph: flag(a.Autograph),
		Parallel:  flag(a.Parallel),
	}
}

// FillFrom は自身で未観測のフィールドをotherの値で補完したコピーを返します。
// 既に値を持つフィールドは上書きしません。
func (a EntityAttributes) FillFrom(other EntityAttributes) EntityAttributes {
	fillText := func(dst, src TextField) TextField {
		if dst.Present() {
			return dst
		}
		return src
	}
	fillFlag := func(dst, src FlagField) FlagField {
		if dst.Present() {
			return dst
		}
		return src
	}
	out := a
	out.Name = fillText(a.Name, other.Name)
	out.Grade = fillText(a.Grade, other.Grade)
	out.Era = fillText(a.Era, other.Era)
	out.Set = fillText(a.Set, other.Set)
	out.Number = fillText(a.Number, other.Number)
	out.Rookie = fillFlag(a.Rookie, other.Rookie)
	out.Autograph = fillFlag(a.Autograph, other.Autograph)
	out.Parallel = fillFlag(a.Parallel, other.Parallel)
	return out
}

// GradingCompany はグレード文字列から鑑定会社（PSA/BGS/SGC/CGC）を取り出します。
func (a EntityAttributes) GradingCompany() string {
	if !a.Grade.Present() {
		return ""
	}
	fields := strings.Fields(strings.ToUpper(a.Grade.Value))
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "PSA", "BGS", "SGC", "CGC":
		return fields[0]
	}
	return ""
}

// IdentityConfidence は識別に使われるフィールドの平均信頼度を返します。
// 識別名は2倍の重みで計算します。
func (a EntityAttributes) IdentityConfidence() float64 {
	var sum, weight float64
	if a.Name.Present() {
		sum += 2 * a.Name.Confidence
		weight += 2
	}
	for _, f := range []TextField{a.Grade, a.Era, a.Set, a.Number} {
		if f.Present() {
			sum += f.Confidence
			weight++
		}
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func (a EntityAttributes) textFields() []TextField {
	return []TextField{a.Name, a.Grade, a.Era, a.Set, a.Number}
}

func (a EntityAttributes) flagFields() []FlagField {
	return []FlagField{a.Rookie, a.Autograph, a.Parallel}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
