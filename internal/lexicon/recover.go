package lexicon

import "github.com/antzucaro/matchr"

// Phonetic recovery of out-of-vocabulary words, in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the unknown word and compared against the precomputed codes of every
//     lexicon word. Words sharing at least one code become candidates.
//  2. Jaro-Winkler ranking: among phonetic candidates, the word with the
//     highest Jaro-Winkler similarity wins, provided it clears the phonetic
//     threshold. When no phonetic candidate exists, a secondary pass tests
//     pure Jaro-Winkler similarity against all words using the stricter
//     fuzzy threshold.

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// phoneticCodes returns the non-empty Double Metaphone codes for word.
func phoneticCodes(word string) []string {
	p, sec := matchr.DoubleMetaphone(word)
	var codes []string
	if p != "" {
		codes = append(codes, p)
	}
	if sec != "" && sec != p {
		codes = append(codes, sec)
	}
	return codes
}

// recoverWord maps an unknown input word to the most similar lexicon word.
// Returns false when no word clears the applicable threshold.
func (g *generation) recoverWord(word string, phoneticThreshold, fuzzyThreshold float64) (string, bool) {
	if len(g.words) == 0 {
		return "", false
	}

	inputCodes := phoneticCodes(word)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)

	for _, known := range g.words {
		phonetic := codesOverlap(inputCodes, g.codes[known])
		score := matchr.JaroWinkler(word, known, false)

		if phonetic {
			if score >= phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = known, score, true
			}
		} else if !bestPhonetic {
			if score >= fuzzyThreshold && score > bestScore {
				best, bestScore = known, score
			}
		}
	}

	if best == "" {
		return "", false
	}
	return best, true
}

// codesOverlap reports whether the two code lists share at least one code.
func codesOverlap(a, b []string) bool {
	for _, ca := range a {
		for _, cb := range b {
			if ca == cb {
				return true
			}
		}
	}
	return false
}
