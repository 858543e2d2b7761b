package supportbot

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold normalizes text for case-insensitive phrase matching. A Caser keeps
// state, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// firstMatch returns the first phrase, in list order, contained in folded.
func firstMatch(folded string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(folded, p) {
			return p, true
		}
	}
	return "", false
}

func containsAny(folded string, words ...string) bool {
	_, ok := firstMatch(folded, words)
	return ok
}
