package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const tradeNoAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewTradeNo returns "ML" + unix milliseconds + six random [A-Z0-9] characters.
func NewTradeNo(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(tradeNoAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate trade number: %w", err)
		}
		suffix[i] = tradeNoAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ML%d%s", now.UnixMilli(), suffix), nil
}
