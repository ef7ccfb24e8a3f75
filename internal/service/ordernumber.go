package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderNumber returns a human-readable, date-prefixed order
// number like ORD-20250101-3F9A1. Uniqueness is ultimately guaranteed by
// the database constraint; callers retry on a collision.
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// GenerateTransactionID returns a method-prefixed settlement reference
// like PIX-AB12CD34EF56.
func GenerateTransactionID(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return fmt.Sprintf("%s-%s", prefix, suffix)
}
