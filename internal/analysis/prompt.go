package analysis

import (
	"fmt"
	"strings"

	"github.com/ganot/perfscan/internal/domain/issue"
)

const (
	// DefaultMaxContentChars keeps prompts within common context limits.
	DefaultMaxContentChars = 8000
	// DefaultResultLanguage is the language issue descriptions are written in.
	DefaultResultLanguage = "English"
)

// SystemPrompt returns the system prompt asking for JSON in language.
func SystemPrompt(language string) string {
	return fmt.Sprintf(`You are a performance testing expert. Analyze code for performance problems and potential bottlenecks under load.
Respond in %s with a single JSON object and nothing else.`, language)
}

// BuildUserPrompt describes the file and the expected response schema.
func BuildUserPrompt(req Request) string {
	types := make([]string, 0, len(issue.Types))
	for _, t := range issue.Types {
		types = append(types, string(t))
	}

	var b strings.Builder
	b.WriteString("Analyze the following file for performance problems in the context of load testing.\n\n")
	fmt.Fprintf(&b, "File name: %s\n", req.FileName)
	fmt.Fprintf(&b, "File type: %s\n\n", req.FileType)
	b.WriteString("Code:\n```\n")
	b.WriteString(req.Content)
	b.WriteString("\n```\n\n")
	b.WriteString("Reply with this JSON shape:\n")
	b.WriteString(`{"issues": [{"type": "...", "title": "...", "description": "...", "line_start": 1, "line_end": 1, "severity": "...", "code_snippet": "...", "suggestion": "...", "certainty": "..."}]}`)
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- type is one of: %s\n", strings.Join(types, ", "))
	b.WriteString("- severity is one of: low, medium, high, critical\n")
	b.WriteString("- certainty is \"confirmed\" when the problem is certain from the code alone, otherwise \"potential\"\n")
	b.WriteString("- line_start and line_end are 1-based; omit both when the issue has no specific location\n")
	b.WriteString("- suggestion is a concrete fix for the issue, with the changed code when it is short\n")
	fmt.Fprintf(&b, "- write title, description and suggestion in %s\n", req.ResultLanguage)
	b.WriteString("- return {\"issues\": []} when there are no problems\n")
	return b.String()
}

// TruncateContent cuts content to at most maxChars on a line boundary and
// appends a notice saying how much was kept.
func TruncateContent(content string, maxChars int) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}

	lines := strings.Split(content, "\n")
	var b strings.Builder
	for _, line := range lines {
		if b.Len()+len(line)+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	kept := b.Len()
	fmt.Fprintf(&b, "\n\n[... FILE TRUNCATED, SHOWING %d OF %d CHARACTERS ...]", kept, len(content))
	return b.String()
}
