package rooms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeCharset, c), "unexpected character %q in code %s", c, code)
		}
		seen[code] = true
	}
	// 100 draws from a 36^6 space should not collide
	assert.Greater(t, len(seen), 95)
}
