package judge

import "strings"

// NormalizeOutput strips trailing whitespace from every line and drops
// trailing blank lines, so "5\n" and "5" compare equal while "5" and "6"
// do not. Leading whitespace and interior content stay significant.
func NormalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	return strings.TrimRight(out, "\n")
}

// OutputsMatch compares actual program output against the expected output
// under normalization. The engine's own accept/wrong judgment is never
// consulted; this comparison is authoritative.
func OutputsMatch(actual, expected string) bool {
	return NormalizeOutput(actual) == NormalizeOutput(expected)
}
