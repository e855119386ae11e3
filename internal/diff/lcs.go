package diff

import "fmt"

// Hunk is one contiguous run of edits. OldStart and NewStart are 0-based
// indices into the old and new sequences.
type Hunk[T any] struct {
	OldStart int `json:"old_start"`
	OldCount int `json:"old_count"`
	NewStart int `json:"new_start"`
	NewCount int `json:"new_count"`
	Removed  []T `json:"removed"`
	Added    []T `json:"added"`
}

// Lines aligns old and new by longest common subsequence and returns the
// edits between them in order. Identical inputs produce no hunks.
func Lines[T comparable](old, new []T) []Hunk[T] {
	lcs := buildLCSMatrix(old, new)

	var hunks []Hunk[T]
	var current *Hunk[T]
	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}
	open := func(i, j int) {
		if current == nil {
			current = &Hunk[T]{OldStart: i, NewStart: j}
		}
	}

	i, j := 0, 0
	for i < len(old) || j < len(new) {
		switch {
		case i < len(old) && j < len(new) && old[i] == new[j]:
			flush()
			i++
			j++
		case j < len(new) && (i == len(old) || lcs[i][j+1] > lcs[i+1][j]):
			open(i, j)
			current.Added = append(current.Added, new[j])
			current.NewCount++
			j++
		default:
			open(i, j)
			current.Removed = append(current.Removed, old[i])
			current.OldCount++
			i++
		}
	}
	flush()

	return hunks
}

// buildLCSMatrix returns m where m[i][j] is the LCS length of old[i:] and new[j:].
func buildLCSMatrix[T comparable](old, new []T) [][]int {
	matrix := make([][]int, len(old)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(new)+1)
	}

	for i := len(old) - 1; i >= 0; i-- {
		for j := len(new) - 1; j >= 0; j-- {
			if old[i] == new[j] {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// Apply replays hunks against old. It fails if a hunk does not line up with
// the lines it claims to remove.
func Apply[T comparable](old []T, hunks []Hunk[T]) ([]T, error) {
	out := make([]T, 0, len(old))
	pos := 0

	for n, h := range hunks {
		if h.OldStart < pos || h.OldStart+h.OldCount > len(old) {
			return nil, fmt.Errorf("hunk %d out of range: start %d count %d", n, h.OldStart, h.OldCount)
		}
		if len(h.Removed) != h.OldCount || len(h.Added) != h.NewCount {
			return nil, fmt.Errorf("hunk %d counts do not match its lines", n)
		}
		out = append(out, old[pos:h.OldStart]...)
		for k, r := range h.Removed {
			if old[h.OldStart+k] != r {
				return nil, fmt.Errorf("hunk %d does not match old line %d", n, h.OldStart+k)
			}
		}
		out = append(out, h.Added...)
		pos = h.OldStart + h.OldCount
	}

	return append(out, old[pos:]...), nil
}
