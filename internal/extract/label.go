package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Label patterns. The captured group is the candidate token.
//
// Japanese labels are matched as plain substrings (there are no word
// boundaries in Japanese text); Latin labels must be whole words so
// "keyboard" does not anchor on "key".
var (
	reLabelJA = regexp.MustCompile(
		`(?:プロモコード|クーポンコード|割引コード|コード|クーポン|キー)[:：]?[\s　]*[「『【\[(“"']?([A-Za-z0-9_-]{4,20})`)
	reLabelLatin = regexp.MustCompile(
		`(?i)\b(?:promo\s*code|coupon\s*code|discount\s*code|code|coupon|promo|key|id)\b[:：]?[\s　]*[「『【\[(“"']?([A-Za-z0-9_-]{4,20})`)

	reYear      = regexp.MustCompile(`^202\d$`)
	reImageExt  = regexp.MustCompile(`(?i)^\.(?:jpe?g|png|gif|webp|svg|bmp)\b`)
	reTokenChar = regexp.MustCompile(`^[A-Za-z0-9_-]`)
)

// MatchLabel is the label-anchored matcher: a code/coupon/key/id label,
// an optional colon, then a 4-20 character token. Candidates are tried in
// document order and the first one that is not excluded wins.
func MatchLabel(text string) (string, bool) {
	type cand struct{ start, end int }
	var cands []cand
	for _, re := range []*regexp.Regexp{reLabelJA, reLabelLatin} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			cands = append(cands, cand{start: m[2], end: m[3]})
		}
	}
	// document order across both patterns
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].start < cands[j].start })
	for _, c := range cands {
		tok := text[c.start:c.end]
		if excludedLabelToken(tok, text[c.end:]) {
			continue
		}
		return tok, true
	}
	return "", false
}

// excludedLabelToken reports whether tok (followed by rest) is a year, a URL
// fragment, an image file name, a truncated longer token, or a plain word.
func excludedLabelToken(tok, rest string) bool {
	if reYear.MatchString(tok) {
		return true
	}
	low := strings.ToLower(tok)
	if strings.Contains(low, "http") || strings.Contains(low, "www") {
		return true
	}
	if strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "://") || isDomainTail(rest) {
		return true
	}
	if reImageExt.MatchString(rest) {
		return true
	}
	// the capture stopped at 20 chars but the token goes on
	if reTokenChar.MatchString(rest) {
		return true
	}
	return !hasUpperOrDigit(tok)
}

// isDomainTail reports whether rest starts like ".com/..." or ".co.jp".
func isDomainTail(rest string) bool {
	if len(rest) < 3 || rest[0] != '.' {
		return false
	}
	for _, tld := range []string{".com", ".jp", ".co", ".net", ".org", ".io"} {
		if strings.HasPrefix(strings.ToLower(rest), tld) {
			return true
		}
	}
	return false
}

func hasUpperOrDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}
