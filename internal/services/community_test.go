package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		require.Len(t, code, inviteCodeLength)
		for _, c := range code {
			isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			assert.True(t, isAlnum, "unexpected character %q in code %q", c, code)
		}
		assert.False(t, seen[code], "duplicate invite code %q", code)
		seen[code] = true
	}
}
