package tracker

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// nameSimilarity is the Jaro-Winkler score at or above which a new
// character name is reported as a likely variant of an existing one.
const nameSimilarity = 0.92

// similarCharacter returns the existing character whose name is closest
// to name, if any is close enough to be the same person under a
// misspelling or different casing.
func (t *Tracker) similarCharacter(name string) (string, bool) {
	lower := strings.ToLower(name)
	best, bestScore := "", 0.0
	for existing := range t.rec.Characters.Items() {
		if strings.EqualFold(existing, name) {
			return existing, true
		}
		if s := matchr.JaroWinkler(lower, strings.ToLower(existing), false); s >= nameSimilarity && s > bestScore {
			best, bestScore = existing, s
		}
	}
	return best, best != ""
}
