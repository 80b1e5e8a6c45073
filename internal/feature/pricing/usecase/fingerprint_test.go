package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
	"cardsignal_backend/internal/feature/pricing/usecase"
)

// TestFingerprint_Normalization は表記ゆれや識別に関係しないフィールドで指紋が変わらないことを検証します。
func TestFingerprint_Normalization(t *testing.T) {
	t.Parallel()

	base := identity.EntityAttributes{
		Name:  identity.NewTextField("Mike Trout", 0.9, identity.SourceVisual),
		Grade: identity.NewTextField("PSA 10", 0.8, identity.SourceVisual),
		Era:   identity.NewTextField("2011", 0.8, identity.SourceVisual),
	}

	variants := []identity.EntityAttributes{
		{
			Name:  identity.NewTextField("  mike   TROUT ", 0.4, identity.SourceAudio),
			Grade: identity.NewTextField("psa 10", 0.4, identity.SourceAudio),
			Era:   identity.NewTextField("2011", 0.1, identity.SourceCarried),
		},
		{
			Name:   identity.NewTextField("Mike Trout", 0.9, identity.SourceVisual),
			Grade:  identity.NewTextField("PSA 10", 0.8, identity.SourceVisual),
			Era:    identity.NewTextField("2011", 0.8, identity.SourceVisual),
			Rookie: identity.NewFlagField(true, 0.9, identity.SourceVisual),
			Stale:  true,
		},
	}

	want := usecase.Fingerprint(base)
	assert.Len(t, want, 64)
	for _, v := range variants {
		assert.Equal(t, want, usecase.Fingerprint(v))
	}
}

// TestFingerprint_FieldsAreNotInterchangeable は同じ値でもフィールドが違えば指紋が異なることを検証します。
func TestFingerprint_FieldsAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	a := identity.EntityAttributes{Set: identity.NewTextField("2011", 0.9, identity.SourceVisual)}
	b := identity.EntityAttributes{Era: identity.NewTextField("2011", 0.9, identity.SourceVisual)}

	assert.NotEqual(t, usecase.Fingerprint(a), usecase.Fingerprint(b))
}
