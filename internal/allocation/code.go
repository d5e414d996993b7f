package allocation

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vialshare/vialshare-backend/pkg/enums"
)

// Codes avoid 0/O/1/I so they survive being read aloud or handwritten.
const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeTokenLength = 5
)

// newOrderCode builds a human-shareable order code: scope prefix, order date,
// random token. Uniqueness is enforced by the orders.code constraint; callers
// retry with a fresh code on collision.
func newOrderCode(scope enums.BatchScope, now time.Time) (string, error) {
	buf := make([]byte, codeTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random token: %w", err)
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", scope.CodePrefix(), now.Format("20060102"), string(buf)), nil
}
