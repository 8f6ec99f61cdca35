package validate

import (
	"regexp"
	"strings"
)

// ecocashPhonePattern matches the local mobile-money subscriber format the
// gateway accepts for push requests.
var ecocashPhonePattern = regexp.MustCompile(`^07[78][0-9]{7}$`)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// EcocashPhone reports whether the value is a subscriber number a mobile
// push can be sent to. Spaces and a leading +263 country prefix are
// normalized before matching.
func EcocashPhone(value string) bool {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if strings.HasPrefix(normalized, "+263") {
		normalized = "0" + strings.TrimPrefix(normalized, "+263")
	}
	return ecocashPhonePattern.MatchString(normalized)
}
