package issue

import (
	"sort"
	"strings"
)

// MatchMode selects how two candidates are recognized as the same issue.
type MatchMode string

const (
	// MatchExact treats candidates as duplicates only when type and line
	// range are identical.
	MatchExact MatchMode = "exact"
	// MatchOverlap also merges candidates of the same type whose line ranges
	// overlap, touch, or are at most LineWindow lines apart.
	MatchOverlap MatchMode = "overlap"
)

// CorrelateOptions tunes duplicate detection.
type CorrelateOptions struct {
	Mode       MatchMode
	LineWindow int
}

// Correlate deduplicates candidates from one or more analysis passes over the
// same file. A merged issue is confirmed if any of its duplicates was.
// Candidates without a line reference are only merged with candidates of the
// same type and the same description. The result is ordered by line start,
// then type, with unreferenced issues last, and does not depend on the order
// of the input.
func Correlate(candidates []RawIssue, opts CorrelateOptions) []Issue {
	if len(candidates) == 0 {
		return []Issue{}
	}

	sorted := make([]RawIssue, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return candidateLess(sorted[i], sorted[j]) })

	var groups [][]RawIssue
	var span LineRange
	for _, c := range sorted {
		if len(groups) > 0 && sameIssue(groups[len(groups)-1][0], span, c, opts) {
			last := len(groups) - 1
			groups[last] = append(groups[last], c)
			if c.Lines != nil && c.Lines.End > span.End {
				span.End = c.Lines.End
			}
			continue
		}
		groups = append(groups, []RawIssue{c})
		if c.Lines != nil {
			span = *c.Lines
		}
	}

	out := make([]Issue, 0, len(groups))
	for _, g := range groups {
		out = append(out, merge(g))
	}
	sort.SliceStable(out, func(i, j int) bool { return issueLess(out[i], out[j]) })
	return out
}

// sameIssue reports whether c belongs to the group opened by first, whose
// merged line range so far is span.
func sameIssue(first RawIssue, span LineRange, c RawIssue, opts CorrelateOptions) bool {
	if first.Type != c.Type {
		return false
	}
	if first.Lines == nil || c.Lines == nil {
		return first.Lines == nil && c.Lines == nil &&
			normalize(first.Description) == normalize(c.Description)
	}
	if opts.Mode == MatchOverlap {
		window := opts.LineWindow
		if window < 0 {
			window = 0
		}
		return c.Lines.Start <= span.End+1+window
	}
	return *first.Lines == *c.Lines
}

func merge(group []RawIssue) Issue {
	best := group[0]
	confidence := ConfidencePotential
	severity := best.Severity
	lines := best.Lines
	var span LineRange
	if lines != nil {
		span = *lines
	}

	for _, c := range group {
		if c.Certainty == ConfidenceConfirmed {
			confidence = ConfidenceConfirmed
		}
		if SeverityRank(c.Severity) > SeverityRank(severity) {
			severity = c.Severity
		}
		if c.Lines != nil {
			if c.Lines.Start < span.Start {
				span.Start = c.Lines.Start
			}
			if c.Lines.End > span.End {
				span.End = c.Lines.End
			}
		}
		if preferred(c, best) {
			best = c
		}
	}

	out := Issue{
		Type:        best.Type,
		Title:       best.Title,
		Description: best.Description,
		Severity:    severity,
		CodeSnippet: best.CodeSnippet,
		Suggestion:  best.Suggestion,
		Confidence:  confidence,
	}
	if lines != nil {
		out.Lines = &LineRange{Start: span.Start, End: span.End}
	}
	return out
}

// preferred reports whether a should represent a group instead of b.
func preferred(a, b RawIssue) bool {
	if (a.Certainty == ConfidenceConfirmed) != (b.Certainty == ConfidenceConfirmed) {
		return a.Certainty == ConfidenceConfirmed
	}
	if ra, rb := SeverityRank(a.Severity), SeverityRank(b.Severity); ra != rb {
		return ra > rb
	}
	if a.Description != b.Description {
		return a.Description < b.Description
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	if a.CodeSnippet != b.CodeSnippet {
		return a.CodeSnippet < b.CodeSnippet
	}
	return a.Suggestion < b.Suggestion
}

func candidateLess(a, b RawIssue) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if (a.Lines == nil) != (b.Lines == nil) {
		return a.Lines != nil
	}
	if a.Lines != nil && *a.Lines != *b.Lines {
		if a.Lines.Start != b.Lines.Start {
			return a.Lines.Start < b.Lines.Start
		}
		return a.Lines.End < b.Lines.End
	}
	if na, nb := normalize(a.Description), normalize(b.Description); na != nb {
		return na < nb
	}
	return preferred(a, b)
}

func issueLess(a, b Issue) bool {
	if (a.Lines == nil) != (b.Lines == nil) {
		return a.Lines != nil
	}
	if a.Lines != nil && a.Lines.Start != b.Lines.Start {
		return a.Lines.Start < b.Lines.Start
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Lines != nil && a.Lines.End != b.Lines.End {
		return a.Lines.End < b.Lines.End
	}
	if a.Description != b.Description {
		return a.Description < b.Description
	}
	return a.Title < b.Title
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
