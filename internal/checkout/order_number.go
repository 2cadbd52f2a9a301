package checkout

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	orderNumberPrefix     = "ORD"
	orderNumberSuffixLen  = 6
	orderNumberTimeLayout = "20060102150405.000"
)

var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderNumber renders ORD-<yyyymmddHHMMSSmmm>-<6 base32 chars> using entropy
// from src, or crypto/rand when src is nil.
func NewOrderNumber(now time.Time, src io.Reader) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("read order number entropy: %w", err)
	}
	suffix := orderNumberEncoding.EncodeToString(buf)[:orderNumberSuffixLen]
	stamp := strings.Replace(now.UTC().Format(orderNumberTimeLayout), ".", "", 1)
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, stamp, suffix), nil
}
