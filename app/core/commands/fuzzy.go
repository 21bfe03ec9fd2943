package commands

import "github.com/agnivade/levenshtein"

// beyond this edit distance a suggestion is more confusing than helpful
const suggestionThreshold = 3

// nearestCommand returns the known command closest to the input, or ""
// when nothing is within the suggestion threshold.
func nearestCommand(input string, known []string) string {
	best := ""
	bestDistance := suggestionThreshold + 1
	for _, candidate := range known {
		if d := levenshtein.ComputeDistance(input, candidate); d < bestDistance {
			bestDistance = d
			best = candidate
		}
	}
	return best
}
