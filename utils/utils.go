package utils

import (
	rndm "math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// --- Random String and ID Generators ---

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789_ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// GenerateRandomString creates a random alphanumeric string of length n.
func GenerateRandomString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rndm.Intn(len(letterRunes))]
	}
	return string(b)
}

func GetUUID() string {
	return uuid.New().String()
}

// NewOrderID returns a short, prefixed order identifier.
func NewOrderID() string {
	return "ORD" + strconv.FormatInt(time.Now().UnixNano()%1e9, 36) + GenerateRandomString(4)
}

// NewInvoiceNumber derives an invoice number from the order it documents.
func NewInvoiceNumber(orderID string) string {
	ref := orderID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return "INV-" + ref + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}
