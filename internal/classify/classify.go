// Package classify tags uploaded files with the language or content type the
// analysis prompt is written for.
package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Tags returned by Classify.
const (
	Unknown = "unknown"
	Binary  = "binary"
)

// ExtensionToType maps file extensions (without dot) to content types.
var ExtensionToType = map[string]string{
	"py": "python", "pyi": "python", "pyw": "python",
	"java": "java",
	"js":   "javascript", "jsx": "javascript", "mjs": "javascript", "cjs": "javascript",
	"ts": "javascript", "tsx": "javascript",
	"jmx":  "jmeter",
	"yaml": "yaml", "yml": "yaml",
	"json": "json",
	"xml":  "xml",
	"sh":   "shell", "bash": "shell", "zsh": "shell",
	"sql":        "sql",
	"properties": "properties",
	"conf":       "config", "config": "config", "ini": "config", "toml": "config",
	"dockerfile": "dockerfile",
	"go":         "go",
	"rb":         "ruby",
	"php":        "php",
	"cs":         "csharp",
	"scala":      "scala",
	"kt":         "kotlin", "kts": "kotlin",
	"scn":        "gatling",
	"k6":         "javascript",
	"rs":         "rust",
	"c":          "c", "h": "c",
	"cpp": "cpp", "cc": "cpp", "hpp": "cpp",
}

// namePattern assigns a type to files whose name carries no useful extension.
type namePattern struct {
	glob string
	tag  string
}

// Patterns are matched against the lowercased base name.
var namePatterns = []namePattern{
	{glob: "dockerfile", tag: "dockerfile"},
	{glob: "dockerfile.*", tag: "dockerfile"},
	{glob: "*.dockerfile", tag: "dockerfile"},
	{glob: "docker-compose*.{yml,yaml}", tag: "yaml"},
	{glob: "jenkinsfile", tag: "groovy"},
	{glob: "{makefile,gnumakefile}", tag: "makefile"},
	{glob: "{gemfile,rakefile}", tag: "ruby"},
	{glob: "locustfile*.py", tag: "python"},
}

// contentRule recognizes a type from the first part of a file.
type contentRule struct {
	tag   string
	match func(sample string) bool
}

var (
	pythonRe     = regexp.MustCompile(`def\s+\w+\s*\(|import\s+\w+|from\s+\w+\s+import`)
	javaRe       = regexp.MustCompile(`public\s+class|private\s+\w+|import\s+java\.|package\s+\w+`)
	javascriptRe = regexp.MustCompile(`function\s+\w+\s*\(|var\s+\w+|let\s+\w+|const\s+\w+|console\.log`)
	yamlRe       = regexp.MustCompile(`(?m)^\s*\w+:\s*$`)
	xmlTagRe     = regexp.MustCompile(`<\w+[^>]*>`)
	sqlRe        = regexp.MustCompile(`\b(select|insert|update|delete|create|alter|drop)\b`)
)

// Content rules run in order; the first match wins. JMeter plans are XML, so
// they are checked before the generic patterns.
var contentRules = []contentRule{
	{tag: "jmeter", match: func(s string) bool {
		return strings.Contains(s, "<jmetertestplan") || strings.Contains(s, "<testplan")
	}},
	{tag: "shell", match: func(s string) bool {
		return strings.HasPrefix(s, "#!") && (strings.Contains(s, "bash") || strings.Contains(s, "sh"))
	}},
	{tag: "python", match: pythonRe.MatchString},
	{tag: "java", match: javaRe.MatchString},
	{tag: "javascript", match: javascriptRe.MatchString},
	{tag: "yaml", match: yamlRe.MatchString},
	{tag: "json", match: func(s string) bool {
		return strings.HasPrefix(strings.TrimSpace(s), "{") && strings.Contains(s, `"`)
	}},
	{tag: "xml", match: func(s string) bool {
		return strings.HasPrefix(strings.TrimSpace(s), "<?xml") || xmlTagRe.MatchString(s)
	}},
	{tag: "sql", match: sqlRe.MatchString},
}

const sampleSize = 1000

// Classify returns the content type of a file from its name, falling back to
// the leading bytes of its content. It never fails: unrecognized files are
// Unknown and files containing NUL bytes are Binary.
func Classify(name string, content []byte) string {
	if IsBinaryContent(content) {
		return Binary
	}
	if tag := byName(name); tag != "" {
		return tag
	}
	return byContent(content)
}

func byName(name string) string {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	for _, p := range namePatterns {
		if ok, _ := doublestar.Match(p.glob, base); ok {
			return p.tag
		}
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		return ""
	}
	return ExtensionToType[ext]
}

func byContent(content []byte) string {
	if len(content) == 0 {
		return Unknown
	}
	sample := content
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	lower := strings.ToLower(string(sample))
	for _, rule := range contentRules {
		if rule.match(lower) {
			return rule.tag
		}
	}
	return Unknown
}
