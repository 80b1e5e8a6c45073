// Package usecase はidentityフィーチャーのビジネスロジック（属性抽出と信頼度融合）を実装します。
package usecase

import "cardsignal_backend/internal/feature/identity/domain/entity"

// Fuse は映像由来と音声由来の属性をフィールド単位で融合します。
//
//   - 片方だけに値がある場合はその値と信頼度を採用
//   - 両方にある場合は信頼度の高い方を採用（同値なら映像を優先）
//   - どちらにもない場合は未観測のまま
//
// 信頼度が低いフィールドもここでは落としません。閾値判定は後段で行います。
// 隠れた状態を持たない純粋関数です。
func Fuse(visual, audio entity.EntityAttributes) entity.EntityAttributes {
	return entity.EntityAttributes{
		Name:      fuseText(visual.Name, audio.Name),
		Grade:     fuseText(visual.Grade, audio.Grade),
		Era:       fuseText(visual.Era, audio.Era),
		Set:       fuseText(visual.Set, audio.Set),
		Number:    fuseText(visual.Number, audio.Number),
		Rookie:    fuseFlag(visual.Rookie, audio.Rookie),
		Autograph: fuseFlag(visual.Autograph, audio.Autograph),
		Parallel:  fuseFlag(visual.Parallel, audio.Parallel),
	}
}

func fuseText(visual, audio entity.TextField) entity.TextField {
	switch {
	case visual.Present() && audio.Present():
		if audio.Confidence > visual.Confidence {
			return audio
		}
		return visual
	case visual.Present():
		return visual
	case audio.Present():
		return audio
	}
	return entity.TextField{}
}

func fuseFlag(visual, audio entity.FlagField) entity.FlagField {
	switch {
	case visual.Present() && audio.Present():
		if audio.Confidence > visual.Confidence {
			return audio
		}
		return visual
	case visual.Present():
		return visual
	case audio.Present():
		return audio
	}
	return entity.FlagField{}
}
