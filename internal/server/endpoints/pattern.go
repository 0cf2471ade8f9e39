package endpoints

import (
	"sort"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/server/models"
)

// Pattern syntax: literal segments, "{name}" or "*" for exactly one
// segment, and a trailing "**" for any remainder including none. Matching
// is segment-wise over "/"; no regular expressions.

const anyRemainder = "**"

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isVariable(seg string) bool {
	return seg == "*" || (len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}')
}

// MatchPattern reports whether path is matched by pattern.
func MatchPattern(pattern, path string) bool {
	ps := splitPath(pattern)
	xs := splitPath(path)

	for i, seg := range ps {
		if seg == anyRemainder && i == len(ps)-1 {
			return true
		}
		if i >= len(xs) {
			return false
		}
		if isVariable(seg) {
			continue
		}
		if seg != xs[i] {
			return false
		}
	}
	return len(ps) == len(xs)
}

// specificity ranks patterns so the most literal one is tried first:
// more literal segments, then fewer wildcards, then more segments.
func specificity(pattern string) (literals, wildcards, segments int) {
	for _, seg := range splitPath(pattern) {
		switch {
		case seg == anyRemainder:
			wildcards += 2
		case isVariable(seg):
			wildcards++
		default:
			literals++
		}
		segments++
	}
	return
}

func moreSpecific(a, b string) bool {
	al, aw, as := specificity(a)
	bl, bw, bs := specificity(b)
	if al != bl {
		return al > bl
	}
	if aw != bw {
		return aw < bw
	}
	if as != bs {
		return as > bs
	}
	return a < b
}

// sortCandidates orders rules most specific first. The order is
// deterministic; overlapping patterns with different requirements are still
// an administrative error.
func sortCandidates(rules []models.EndpointPermission) {
	sort.SliceStable(rules, func(i, j int) bool {
		return moreSpecific(rules[i].PathPattern, rules[j].PathPattern)
	})
}
