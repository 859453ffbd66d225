// Package vercmp compares dotted version strings as reported by Kerberos
// tooling (e.g. "krb5-config --version" prints "Kerberos 5 release 1.21.2").
//
// Comparison is numeric and component-wise: "1.9" < "1.10" < "1.10.1".
// A shorter version is padded with zero components, so "1.10" == "1.10.0".
// Non-numeric trailing fragments within a component (such as "1.18-beta1")
// compare by their leading numeric part; a component with no leading digits
// counts as zero.
package vercmp

import (
	"strconv"
	"strings"
)

// Compare returns -1 if a < b, 0 if a == b, and 1 if a > b under dotted
// version ordering.
func Compare(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av := componentValue(as, i)
		bv := componentValue(bs, i)
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// AtLeast reports whether version is greater than or equal to min.
func AtLeast(version, min string) bool {
	return Compare(version, min) >= 0
}

// componentValue returns the numeric value of component i, padding missing
// components with zero.
func componentValue(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	return leadingInt(parts[i])
}

// leadingInt parses the leading digit run of s ("18" from "18-beta1").
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

// FromToolOutput extracts the version number from a tool banner such as
// "Kerberos 5 release 1.21.2" or "heimdal 7.8.0". The last whitespace
// separated field is taken, matching how the MIT and Heimdal banners are
// laid out.
func FromToolOutput(banner string) string {
	fields := strings.Fields(strings.TrimSpace(banner))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
