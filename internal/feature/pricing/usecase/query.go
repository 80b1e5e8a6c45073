package usecase

import (
	"strings"
	"unicode/utf8"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
)

// MaxQueryLength は検索クエリの最大文字数（rune数）です。
const MaxQueryLength = 60

// DeterministicQuery は "name era set #number grade" の規則で検索クエリを組み立てます。
// 未観測のフィールドは省略されます。
func DeterministicQuery(attrs identity.EntityAttributes) string {
	parts := make([]string, 0, 5)
	for _, f := range []identity.TextField{attrs.Name, attrs.Era, attrs.Set} {
		if f.Present() {
			parts = append(parts, f.Value)
		}
	}
	if attrs.Number.Present() {
		parts = append(parts, "#"+strings.TrimPrefix(attrs.Number.Value, "#"))
	}
	if attrs.Grade.Present() {
		parts = append(parts, attrs.Grade.Value)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// BroadenedQuery は番号とグレードを外した再検索用のクエリを組み立てます。
func BroadenedQuery(attrs identity.EntityAttributes) string {
	attrs.Number = identity.TextField{}
	attrs.Grade = identity.TextField{}
	return DeterministicQuery(attrs)
}

// SanitizeQuery は外部生成されたクエリを検索に使える形に整えます。
// 最初の空でない行だけを使い、引用符を除去し、MaxQueryLengthを超える場合は単語境界で切り詰めます。
func SanitizeQuery(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = strings.NewReplacer(`"`, "", "'", "", "`", "", "“", "", "”", "").Replace(line)
	line = strings.Join(strings.Fields(line), " ")

	if utf8.RuneCountInString(line) <= MaxQueryLength {
		return line
	}
	runes := []rune(line)[:MaxQueryLength]
	cut := string(runes)
	// 次の文字が空白でなければ単語の途中なので直前の空白まで戻す
	if next := []rune(line)[MaxQueryLength]; next != ' ' {
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimSpace(cut)
}
