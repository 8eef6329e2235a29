package multicard

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// callbackSignature is the md5 over store_id + invoice_id + amount + secret,
// the scheme Multicard uses on payment-confirmation callbacks. Amount is in
// tiyins.
func callbackSignature(storeID, invoiceID string, amountTiyin int64, secret string) string {
	payload := fmt.Sprintf("%s%s%d%s", storeID, invoiceID, amountTiyin, secret)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// webhookSignature is the sha1 over uuid + invoice_id + amount + secret used
// on status webhooks.
func webhookSignature(uuid, invoiceID string, amountTiyin int64, secret string) string {
	payload := fmt.Sprintf("%s%s%d%s", uuid, invoiceID, amountTiyin, secret)
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func signaturesEqual(want, got string) bool {
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
