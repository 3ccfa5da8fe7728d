package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ganot/perfscan/internal/domain/issue"
)

// rawReply is the JSON object the provider must return.
type rawReply struct {
	Issues *[]rawIssue `json:"issues"`
}

type rawIssue struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LineStart   *int   `json:"line_start"`
	LineEnd     *int   `json:"line_end"`
	Severity    string `json:"severity"`
	CodeSnippet string `json:"code_snippet"`
	Suggestion  string `json:"suggestion"`
	Certainty   string `json:"certainty"`
}

var typeAliases = map[string]issue.Type{
	"i/o":        issue.TypeIO,
	"loop":       issue.TypeLoopComplexity,
	"algorithm":  issue.TypeAlgorithmic,
	"complexity": issue.TypeAlgorithmic,
}

const maxTitleRunes = 80

// ParseIssues validates a provider reply and converts it to candidates.
// Markdown code fences around the JSON are tolerated; anything else that does
// not match the schema is an error.
func ParseIssues(content string) ([]issue.RawIssue, error) {
	content = stripFences(content)

	var reply rawReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if reply.Issues == nil {
		return nil, errors.New(`reply has no "issues" array`)
	}

	out := make([]issue.RawIssue, 0, len(*reply.Issues))
	for i, r := range *reply.Issues {
		c, err := convert(r)
		if err != nil {
			return nil, fmt.Errorf("issue %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func convert(r rawIssue) (issue.RawIssue, error) {
	t := normalizeType(r.Type)
	if !t.Valid() {
		return issue.RawIssue{}, fmt.Errorf("unknown type %q", r.Type)
	}

	description := strings.TrimSpace(r.Description)
	if description == "" {
		return issue.RawIssue{}, errors.New("empty description")
	}

	certainty := issue.Confidence(strings.ToLower(strings.TrimSpace(r.Certainty)))
	if !certainty.Valid() {
		return issue.RawIssue{}, fmt.Errorf("unknown certainty %q", r.Certainty)
	}

	severity := issue.Severity(strings.ToLower(strings.TrimSpace(r.Severity)))
	if severity == "" {
		severity = issue.SeverityMedium
	}
	if issue.SeverityRank(severity) == 0 {
		return issue.RawIssue{}, fmt.Errorf("unknown severity %q", r.Severity)
	}

	lines, err := lineRange(r.LineStart, r.LineEnd)
	if err != nil {
		return issue.RawIssue{}, err
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = shorten(description, maxTitleRunes)
	}

	return issue.RawIssue{
		Type:        t,
		Title:       title,
		Description: description,
		Lines:       lines,
		Severity:    severity,
		CodeSnippet: r.CodeSnippet,
		Suggestion:  strings.TrimSpace(r.Suggestion),
		Certainty:   certainty,
	}, nil
}

func normalizeType(s string) issue.Type {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := typeAliases[s]; ok {
		return t
	}
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	return issue.Type(s)
}

func lineRange(start, end *int) (*issue.LineRange, error) {
	if start == nil {
		if end != nil {
			return nil, errors.New("line_end without line_start")
		}
		return nil, nil
	}
	if *start < 1 {
		return nil, fmt.Errorf("invalid line_start %d", *start)
	}
	lr := &issue.LineRange{Start: *start, End: *start}
	if end != nil {
		if *end < *start {
			return nil, fmt.Errorf("line_end %d before line_start %d", *end, *start)
		}
		lr.End = *end
	}
	return lr, nil
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}

func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
