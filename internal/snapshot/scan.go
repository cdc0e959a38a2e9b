package snapshot

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CallKind is the syntax a subroutine call was written in.
type CallKind string

const (
	CallGosub                CallKind = "GOSUB"
	CallSubroutine           CallKind = "Subroutine"
	CallBackgroundSubroutine CallKind = "BackgroundSubroutine"
	CallPostSubroutine       CallKind = "PostSubroutine"
)

// CommentMarker starts a comment line in formula text.
const CommentMarker = "'"

// SubroutineCall is one reference from formula text to a named routine.
type SubroutineCall struct {
	Kind      CallKind
	Target    string
	Commented bool
	// Line is 1-based within the scanned formula.
	Line int
	// TriggerPoint is filled in by BuildEvents.
	TriggerPoint string
}

func (c SubroutineCall) String() string {
	return string(c.Kind) + ":" + c.Target
}

// ParseAnomaly records a call keyword that no recognized syntax matched.
// It is informational and never fails a run.
type ParseAnomaly struct {
	Line         int
	Text         string
	TriggerPoint string
}

func (a ParseAnomaly) String() string {
	return fmt.Sprintf("line %d: unrecognized call syntax: %s", a.Line, a.Text)
}

var callPatterns = []struct {
	kind    CallKind
	pattern *regexp.Regexp
}{
	{CallGosub, regexp.MustCompile(`\bGOSUB\s+([A-Za-z_][A-Za-z0-9_]*)`)},
	{CallSubroutine, regexp.MustCompile(`\bSubroutine\s*\(\s*["']([^"']+)["']`)},
	{CallBackgroundSubroutine, regexp.MustCompile(`\bBackgroundSubroutine\s*\(\s*["']([^"']+)["']`)},
	{CallPostSubroutine, regexp.MustCompile(`\bPostSubroutine\s*\(\s*["']([^"']+)["']`)},
}

var keywordPattern = regexp.MustCompile(`\b(GOSUB|Subroutine|BackgroundSubroutine|PostSubroutine)\b`)

type located struct {
	offset int
	call   SubroutineCall
}

// scanLine returns the calls on one line in textual order plus the offsets of
// keywords that did not form a call.
func scanLine(line string) ([]SubroutineCall, []int) {
	commented := strings.HasPrefix(strings.TrimLeft(line, " \t"), CommentMarker)

	var found []located
	matched := map[int]bool{}
	for _, p := range callPatterns {
		for _, m := range p.pattern.FindAllStringSubmatchIndex(line, -1) {
			c := SubroutineCall{
				Kind:   p.kind,
				Target: line[m[2]:m[3]],
				// A marker directly before the keyword comments out the call.
				Commented: commented || (m[0] > 0 && line[m[0]-1] == '\''),
			}
			found = append(found, located{offset: m[0], call: c})
			matched[m[0]] = true
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].offset < found[j].offset })

	calls := make([]SubroutineCall, 0, len(found))
	for _, f := range found {
		calls = append(calls, f.call)
	}

	var stray []int
	for _, m := range keywordPattern.FindAllStringIndex(line, -1) {
		if !matched[m[0]] {
			stray = append(stray, m[0])
		}
	}
	return calls, stray
}

// ScanLine extracts the subroutine calls on a single line, in textual order.
// Calls on a comment line are returned with Commented set.
func ScanLine(line string) []SubroutineCall {
	calls, _ := scanLine(line)
	return calls
}

// ScanResult is the outcome of scanning a whole formula.
type ScanResult struct {
	Active    []SubroutineCall
	Commented []SubroutineCall
	Anomalies []ParseAnomaly
}

// ScanFormula scans text line by line. It never fails: text it does not
// recognize is skipped, and stray keywords are reported as anomalies.
func ScanFormula(text string) ScanResult {
	var res ScanResult
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		calls, stray := scanLine(line)
		for _, c := range calls {
			c.Line = i + 1
			if c.Commented {
				res.Commented = append(res.Commented, c)
			} else {
				res.Active = append(res.Active, c)
			}
		}
		if len(stray) > 0 && !strings.HasPrefix(strings.TrimLeft(line, " \t"), CommentMarker) {
			res.Anomalies = append(res.Anomalies, ParseAnomaly{Line: i + 1, Text: strings.TrimSpace(line)})
		}
	}
	return res
}
