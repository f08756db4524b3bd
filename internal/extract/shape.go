package extract

import (
	"regexp"
	"strings"
)

// reShape finds uppercase alphanumeric runs of 6-15 chars with ASCII word
// boundaries on both sides (longer runs never match).
var reShape = regexp.MustCompile(`\b[A-Z0-9]{6,15}\b`)

// DefaultStoplist holds tokens that look like codes but are platform, brand
// or marketing words. They are rejected only as whole tokens, so SALE is
// dropped while SALE50 survives.
var DefaultStoplist = []string{
	"HTTP", "HTTPS", "HTML", "WWW", "URL", "JSON",
	"AMAZON", "RAKUTEN", "YAHOO", "GOOGLE", "APPLE", "SALE", "FREE", "OFF", "POINT", "CAMPAIGN",
	"COUPON", "CODE", "NEWS", "PRESS", "RELEASE",
	"LTE", "NFC", "SSD", "HDD", "CPU", "GPU", "RAM",
	"WIN", "PS", "STEAM", "RX", "SDGS", "MP3", "MP4", "PDF", "JPEG", "PNG",
	"2020", "2021", "2022", "2023", "2024", "2025", "2026", "2027", "2028", "2029",
}

// DefaultFamilies are product and platform names that are also rejected when
// a model number follows (IPHONE15, RTX4090, COVID19).
var DefaultFamilies = []string{
	"IPHONE", "IPAD", "IPADOS", "IOS", "MACOS", "MACBOOK", "IMAC", "AIRPODS", "WATCHOS",
	"ANDROID", "WINDOWS", "PIXEL", "GALAXY", "XPERIA", "AQUOS",
	"PLAYSTATION", "XBOX", "SWITCH", "NINTENDO", "RTX", "GTX",
	"WIFI", "USB", "HDMI", "COVID",
}

// Stoplist rejects known false-positive shape matches.
type Stoplist struct {
	exact    map[string]struct{}
	families []string
}

// NewStoplist builds a stoplist from whole-token words and families (which
// also match as whole tokens). Entries are matched case-insensitively.
func NewStoplist(words, families []string) *Stoplist {
	s := &Stoplist{exact: make(map[string]struct{}, len(words)+len(families))}
	add := func(w string) string {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			s.exact[w] = struct{}{}
		}
		return w
	}
	for _, w := range words {
		add(w)
	}
	seen := make(map[string]struct{}, len(families))
	for _, w := range families {
		w = add(w)
		if w == "" || isDigits(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		s.families = append(s.families, w)
	}
	return s
}

// Contains reports whether token is a stopword, a family name followed by a
// model number, or a year-like number.
func (s *Stoplist) Contains(token string) bool {
	token = strings.ToUpper(token)
	if isDigits(token) && strings.HasPrefix(token, "202") {
		return true
	}
	if s == nil {
		return false
	}
	if _, ok := s.exact[token]; ok {
		return true
	}
	for _, fam := range s.families {
		rest, ok := strings.CutPrefix(token, fam)
		if ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return true
		}
	}
	return false
}

// ShapeMatcher returns the shape-based fallback matcher: the first uppercase
// alphanumeric run (optionally required to mix letters and digits) that is not
// in stop. It never guesses: no surviving run means no code.
func ShapeMatcher(requireMixed bool, stop *Stoplist) MatchFunc {
	return func(text string) (string, bool) {
		for _, run := range reShape.FindAllString(text, -1) {
			if requireMixed && !(hasLetter(run) && hasDigit(run)) {
				continue
			}
			if stop.Contains(run) {
				continue
			}
			return run, true
		}
		return "", false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func hasDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}
