package tools

import (
	"path"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var destructivePrograms = map[string]bool{
	"rm":       true,
	"rmdir":    true,
	"dd":       true,
	"mkfs":     true,
	"shutdown": true,
	"reboot":   true,
	"chmod":    true,
	"chown":    true,
	"kill":     true,
	"killall":  true,
	"sudo":     true,
	"mv":       true,
	"truncate": true,
}

// CommandAnalysis lists the programs a shell command line would invoke.
type CommandAnalysis struct {
	Programs  []string
	Dangerous  []string
	ParseError error
}

// AnalyzeCommand parses a bash command line and collects the names of the
// programs it calls, including those inside pipelines, subshells and
// command substitutions.
func AnalyzeCommand(command string) CommandAnalysis {
	var out CommandAnalysis
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		out.ParseError = err
		return out
	}
	seen := map[string]bool{}
	danger := map[string]bool{}
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := path.Base(call.Args[0].Lit())
		if name == "" || name == "." {
			return true
		}
		if !seen[name] {
			seen[name] = true
			out.Programs = append(out.Programs, name)
		}
		if isDestructive(name) {
			danger[name] = true
		}
		return true
	})
	for name := range danger {
		out.Dangerous = append(out.Dangerous, name)
	}
	sort.Strings(out.Dangerous)
	return out
}

func isDestructive(name string) bool {
	if destructivePrograms[name] {
		return true
	}
	// mkfs.ext4 and friends
	return strings.HasPrefix(name, "mkfs.")
}
