package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// keySeparator joins the key tuple fields. It is not expected to appear in
// event names, user ids or campaign ids.
const keySeparator = "|"

// DeriveKey returns the stable idempotency key for the logical event tuple
// (name, userID, timestamp, campaignID). Identical tuples always yield the
// same key; campaignID is substituted with the empty string when absent.
// The key is the lowercase hex SHA-256 of the joined tuple, 64 characters.
func DeriveKey(name string, userID string, timestamp int64, campaignID string) string {
	raw := strings.Join([]string{
		name,
		userID,
		strconv.FormatInt(timestamp, 10),
		campaignID,
	}, keySeparator)

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
