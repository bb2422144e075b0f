// Copyright (c) 2026 Novelforge. All rights reserved.

package textnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/novelforge/novelforge/pkg/textnorm"
)

func TestNormalize_CJKPreserved(t *testing.T) {
	assert.Equal(t, "斗破苍穹", textnorm.Normalize("斗破苍穹"))
	assert.Equal(t, "斗破苍穹", textnorm.Normalize(" 斗破苍穹 "))
}

func TestNormalize_CaseAndPunctuation(t *testing.T) {
	assert.Equal(t, "solo leveling", textnorm.Normalize("Solo-Leveling!!"))
	assert.Equal(t, "solo leveling", textnorm.Normalize("  SOLO   LEVELING  "))
}

func TestNormalize_AccentStripping(t *testing.T) {
	assert.Equal(t, "solo leveling", textnorm.Normalize("Sólo Lévéling"))
}

func TestNormalize_MixedScript(t *testing.T) {
	assert.Equal(t, "天蚕土豆", textnorm.Normalize("天蚕土豆"))
}

func TestSanitize_ForbiddenCharacters(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i", textnorm.Sanitize(`a\b/c:d*e?f"g<h>i`))
}

func TestSanitize_Empty(t *testing.T) {
	assert.Equal(t, "_", textnorm.Sanitize(""))
	assert.Equal(t, "_", textnorm.Sanitize("   "))
}
