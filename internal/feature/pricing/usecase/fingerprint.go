package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
)

// fingerprintFields は指紋に含める識別フィールドの名前です。順序は固定です。
var fingerprintFields = [...]string{"name", "grade", "era", "set", "number"}

// Fingerprint は識別フィールド（名前・グレード・年代・セット・番号）から
// キャッシュキーとなる指紋を算出します。
// 値は前後の空白除去・小文字化・連続空白の圧縮を行ってから固定順で連結するため、
// 表記ゆれやフラグ・信頼度・出所の違いでは指紋は変わりません。
func Fingerprint(attrs identity.EntityAttributes) string {
	values := [...]string{
		attrs.Name.Value,
		attrs.Grade.Value,
		attrs.Era.Value,
		attrs.Set.Value,
		attrs.Number.Value,
	}

	var b strings.Builder
	for i, v := range values {
		b.WriteString(fingerprintFields[i])
		b.WriteByte('=')
		b.WriteString(normalize(v))
		b.WriteByte('\x1f')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
