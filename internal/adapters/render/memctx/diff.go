package memctx

import "strings"

// DiffLines computes a minimal line-level diff between the previously
// rendered content and the current one. Removed lines are tagged "-",
// added lines "+". Returns nil when the contents are identical.
func DiffLines(previous, current string) []string {
	if previous == current {
		return nil
	}

	before := strings.Split(previous, "\n")
	after := strings.Split(current, "\n")

	// Longest common subsequence over lines.
	lcs := make([][]int, len(before)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(after)+1)
	}
	for i := len(before) - 1; i >= 0; i-- {
		for j := len(after) - 1; j >= 0; j-- {
			if before[i] == after[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []string
	i, j := 0, 0
	for i < len(before) && j < len(after) {
		switch {
		case before[i] == after[j]:
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, "- "+before[i])
			i++
		default:
			out = append(out, "+ "+after[j])
			j++
		}
	}
	for ; i < len(before); i++ {
		out = append(out, "- "+before[i])
	}
	for ; j < len(after); j++ {
		out = append(out, "+ "+after[j])
	}

	return out
}
