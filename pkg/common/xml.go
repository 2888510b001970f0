package common

import "strings"

var xmlReserved = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// EscapeXML replaces the five reserved XML characters. It is not idempotent:
// escaping twice double-encodes the ampersands.
func EscapeXML(s string) string {
	return xmlReserved.Replace(s)
}
