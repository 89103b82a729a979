package fulfillment

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Bundle tokens are base64("orderID:expiryEpochMillis"). They gate access
// to the prepared zip archive for an order, nothing else; the archive key
// is derived from the order id.
var (
	ErrTokenMalformed = errors.New("malformed bundle token")
	ErrTokenExpired   = errors.New("bundle token expired")
)

// URL-safe on encode because tokens travel in URL paths; standard base64
// is still accepted on decode.
func EncodeBundleToken(orderID string, expiry time.Time) string {
	raw := orderID + ":" + strconv.FormatInt(expiry.UnixMilli(), 10)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func DecodeBundleToken(token string, now time.Time) (orderID string, err error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", ErrTokenMalformed
		}
	}
	id, expStr, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return "", ErrTokenMalformed
	}
	expMillis, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrTokenMalformed
	}
	if now.After(time.UnixMilli(expMillis)) {
		return "", ErrTokenExpired
	}
	return id, nil
}

// BundleKey is where the asynchronously prepared archive for an order
// lives in the asset bucket.
func BundleKey(orderID string) string { return "bundles/" + orderID + ".zip" }
