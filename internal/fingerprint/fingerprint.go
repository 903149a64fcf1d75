// Package fingerprint derives dedup cache keys from canonical observations.
//
// Keys have the form {subject}-{digest}. Order digests are built from the
// fields that identify a listing and its current terms, so a re-announced
// unchanged listing collides while a price or expiry change does not.
// Every other kind is keyed by a hex MD5 of its canonical bytes.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deduper/internal/models"
)

const (
	fieldSep = "|"
	keySep   = "-"

	// expiresKeyLayout truncates expiry to whole seconds.
	expiresKeyLayout = "2006-01-02T15:04:05"
)

// expiresLayouts are the timestamp shapes seen from upload clients.
var expiresLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
}

// Key joins a subject and digest.
func Key(subject, digest string) string {
	return subject + keySep + digest
}

// OrderKey returns the key for a canonical order received on subject.
func OrderKey(subject string, o models.Order) (string, error) {
	expires, err := parseExpires(o.Expires)
	if err != nil {
		return "", &models.ParseError{Kind: "orders", Err: fmt.Errorf("order %d: %w", o.ID, err)}
	}

	digest := strings.Join([]string{
		strconv.FormatUint(o.ID, 10),
		strconv.Itoa(o.LocationID),
		strconv.Itoa(o.Amount),
		o.UnitPriceSilver.String(),
		expires.Format(expiresKeyLayout),
	}, fieldSep)

	return Key(subject, digest), nil
}

// ContentKey returns the key for an opaque payload received on subject.
func ContentKey(subject string, data []byte) string {
	sum := md5.Sum(data)
	return Key(subject, hex.EncodeToString(sum[:]))
}

// parseExpires accepts zone-less client timestamps as UTC.
func parseExpires(s string) (time.Time, error) {
	for _, layout := range expiresLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable Expires %q", s)
}
