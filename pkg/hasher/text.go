package hasher

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies the canonicalisation policy for text-bodied
// artifacts: Unicode NFC normalisation and line-ending normalisation to
// bare "\n". Timestamps are never embedded in text artifact bodies by
// contract, so no further timestamp-stripping is needed here (structured
// content's timestamp exclusion is handled by the caller, which omits
// timestamp fields from the struct passed to JCS).
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}
