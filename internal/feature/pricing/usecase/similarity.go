package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// TokenSetRatio は2つの文字列の語集合に基づく類似度を0〜100で返します。
// 共通語の並びと、それに各文字列固有の語を加えた並びとの編集距離類似度のうち最大値を採用するため、
// 語順の違いや一方にだけある補足語の影響を受けにくくなります。
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := levenshtein.Similarity(withA, withB, nil)
	if base != "" {
		if s := levenshtein.Similarity(base, withA, nil); s > best {
			best = s
		}
		if s := levenshtein.Similarity(base, withB, nil); s > best {
			best = s
		}
	}
	return best * 100
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f = strings.Trim(f, "."); f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}
