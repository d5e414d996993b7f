package allocation

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialshare/vialshare-backend/pkg/enums"
)

func TestNewOrderCodeFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	code, err := newOrderCode(enums.BatchScopeGroupBuy, now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^GB-20260314-[A-HJ-NP-Z2-9]{5}$`), code)

	code, err = newOrderCode(enums.BatchScopeSubGroup, now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^SG-20260314-[A-HJ-NP-Z2-9]{5}$`), code)
}

func TestNewOrderCodeAvoidsAmbiguousCharacters(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := newOrderCode(enums.BatchScopeGroupBuy, time.Now())
		require.NoError(t, err)
		assert.NotContains(t, code[12:], "0")
		assert.NotContains(t, code[12:], "O")
		assert.NotContains(t, code[12:], "1")
		assert.NotContains(t, code[12:], "I")
	}
}
