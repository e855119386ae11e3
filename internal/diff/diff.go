// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"strings"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType `json:"type"`
	Content string   `json:"content"`
	OldNum  int      `json:"old_num,omitempty"`
	NewNum  int      `json:"new_num,omitempty"`

	// NoNewline marks the last line of a file that does not end in '\n'.
	NoNewline bool `json:"no_newline,omitempty"`
}

func newLine(t LineType, raw string, oldNum, newNum int) Line {
	content, terminated := strings.CutSuffix(raw, "\n")
	return Line{Type: t, Content: content, OldNum: oldNum, NewNum: newNum, NoNewline: !terminated}
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Result contains the complete diff information
type Result struct {
	Hunks []DisplayHunk `json:"hunks"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
		Changes   int `json:"changes"`
	} `json:"stats"`
}

// DisplayHunk is a Hunk rendered with surrounding context lines.
type DisplayHunk struct {
	OldStart int    `json:"old_start"`
	OldLines int    `json:"old_lines"`
	NewStart int    `json:"new_start"`
	NewLines int    `json:"new_lines"`
	Lines    []Line `json:"lines"`
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// SplitLines splits content after every '\n', keeping the terminator, so
// joining the lines gives back content exactly. Only the last line can lack
// a terminator. Empty content yields no lines.
func SplitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	parts := bytes.SplitAfter(content, []byte{'\n'})
	if len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = string(p)
	}
	return lines
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) *Result {
	oldLines := SplitLines(oldContent)
	newLines := SplitLines(newContent)

	result := &Result{}
	hunks := Lines(oldLines, newLines)
	result.Hunks = e.addContext(hunks, oldLines)

	for _, h := range hunks {
		result.Stats.Additions += h.NewCount
		result.Stats.Deletions += h.OldCount
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result
}

// addContext groups hunks whose context windows touch and surrounds each
// group with up to contextLines unchanged lines.
func (e *Engine) addContext(hunks []Hunk[string], oldLines []string) []DisplayHunk {
	var result []DisplayHunk

	for start := 0; start < len(hunks); {
		end := start + 1
		for end < len(hunks) {
			prev := hunks[end-1]
			if hunks[end].OldStart-(prev.OldStart+prev.OldCount) > 2*e.contextLines {
				break
			}
			end++
		}
		result = append(result, e.render(hunks[start:end], oldLines))
		start = end
	}

	return result
}

func (e *Engine) render(group []Hunk[string], oldLines []string) DisplayHunk {
	first, last := group[0], group[len(group)-1]
	oldFrom := max(0, first.OldStart-e.contextLines)
	oldTo := min(len(oldLines), last.OldStart+last.OldCount+e.contextLines)

	dh := DisplayHunk{
		OldStart: oldFrom,
		NewStart: first.NewStart - (first.OldStart - oldFrom),
		OldLines: oldTo - oldFrom,
	}

	oldNum, newNum := oldFrom, dh.NewStart
	context := func(upTo int) {
		for ; oldNum < upTo; oldNum++ {
			newNum++
			dh.Lines = append(dh.Lines, newLine(Context, oldLines[oldNum], oldNum+1, newNum))
			dh.NewLines++
		}
	}

	for _, h := range group {
		context(h.OldStart)
		for _, l := range h.Removed {
			oldNum++
			dh.Lines = append(dh.Lines, newLine(Deletion, l, oldNum, 0))
		}
		for _, l := range h.Added {
			newNum++
			dh.Lines = append(dh.Lines, newLine(Addition, l, 0, newNum))
			dh.NewLines++
		}
	}
	context(oldTo)

	return dh
}

// Format returns a string representation of the diff
func (r *Result) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%s +%s @@\n",
			rangeHeader(hunk.OldStart, hunk.OldLines),
			rangeHeader(hunk.NewStart, hunk.NewLines))

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteString("+ ")
			case Deletion:
				buf.WriteString("- ")
			case Context:
				buf.WriteString("  ")
			}
			buf.WriteString(line.Content)
			buf.WriteString("\n")
			if line.NoNewline {
				buf.WriteString("\\ No newline at end of file\n")
			}
		}
	}

	return buf.String()
}

// Empty reports whether the diff has no changes.
func (r *Result) Empty() bool {
	return r == nil || len(r.Hunks) == 0
}

func rangeHeader(start, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", start)
	}
	if count == 1 {
		return fmt.Sprintf("%d", start+1)
	}
	return fmt.Sprintf("%d,%d", start+1, count)
}
