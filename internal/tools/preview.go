package tools

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineDiff renders a line-oriented diff of before and after, one line per
// changed line prefixed with "+" or "-". At most maxLines lines are shown.
func LineDiff(before, after string, maxLines int) string {
	if before == after {
		return "no changes"
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []string
	added, removed := 0, 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for _, line := range splitLines(d.Text) {
			if prefix == "+ " {
				added++
			} else {
				removed++
			}
			out = append(out, prefix+line)
		}
	}
	hidden := 0
	if maxLines > 0 && len(out) > maxLines {
		hidden = len(out) - maxLines
		out = out[:maxLines]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "+%d -%d\n", added, removed)
	sb.WriteString(strings.Join(out, "\n"))
	if hidden > 0 {
		fmt.Fprintf(&sb, "\n... %d more lines", hidden)
	}
	return sb.String()
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
