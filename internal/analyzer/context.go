// Package analyzer turns the raw signal of an agent interaction (free text,
// the file being touched, declared activities) into a models.TriggerContext
// the trigger engine can score.
package analyzer

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/pathutil"
)

// Category names the analyzer fills in.
const (
	CategoryLanguage    = "language"
	CategoryEnvironment = "environment"
)

// Activity patterns inferred from the file path.
const (
	PatternTesting       = "testing"
	PatternDocumentation = "documentation"
	PatternConfiguration = "configuration"
)

// inferredPriority is the priority of categories the analyzer derives
// rather than the caller declaring them.
const inferredPriority = 0.5

// ContextBuilder gathers the signal of one interaction.
type ContextBuilder struct {
	texts       []string
	keywords    []string
	filePath    string
	repoRoot    string
	patterns    []string
	categories  []models.UserDefinedContext
	environment string
	interaction int
	err         error
}

// NewContextBuilder creates an empty builder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{}
}

// WithText adds free text (a prompt, a tool description, a commit message)
// to be tokenised into keywords.
func (b *ContextBuilder) WithText(text string) *ContextBuilder {
	if strings.TrimSpace(text) != "" {
		b.texts = append(b.texts, text)
	}
	return b
}

// WithKeywords adds keywords verbatim.
func (b *ContextBuilder) WithKeywords(keywords ...string) *ContextBuilder {
	b.keywords = append(b.keywords, keywords...)
	return b
}

// WithFile sets the file being touched.
func (b *ContextBuilder) WithFile(filePath string) *ContextBuilder {
	b.filePath = filePath
	return b
}

// WithRepoRoot makes absolute file paths under root repository-relative.
func (b *ContextBuilder) WithRepoRoot(root string) *ContextBuilder {
	b.repoRoot = root
	return b
}

// WithPatterns adds declared activity patterns such as "testing".
func (b *ContextBuilder) WithPatterns(patterns ...string) *ContextBuilder {
	b.patterns = append(b.patterns, patterns...)
	return b
}

// WithCategory adds a user-defined category/value pair. An invalid pair is
// reported by Build.
func (b *ContextBuilder) WithCategory(category, value string, priority float64) *ContextBuilder {
	u, err := models.NewUserDefinedContext(category, value, priority, nil)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.categories = append(b.categories, u)
	return b
}

// WithEnvironment sets the environment category (e.g. "ci", "development").
func (b *ContextBuilder) WithEnvironment(env string) *ContextBuilder {
	b.environment = env
	return b
}

// WithInteraction sets the 1-based interaction number.
func (b *ContextBuilder) WithInteraction(n int) *ContextBuilder {
	b.interaction = n
	return b
}

// Build assembles the context. Keywords and patterns are lower-cased,
// deduplicated and sorted so equal inputs build equal contexts.
func (b *ContextBuilder) Build() (*models.TriggerContext, error) {
	if b.err != nil {
		return nil, b.err
	}

	kw := make([]string, 0, len(b.keywords))
	for _, k := range b.keywords {
		kw = append(kw, strings.ToLower(strings.TrimSpace(k)))
	}
	for _, t := range b.texts {
		kw = append(kw, Keywords(t)...)
	}

	ctx := &models.TriggerContext{
		Keywords:    uniqueSorted(kw),
		Interaction: b.interaction,
	}

	patterns := append([]string(nil), b.patterns...)
	if b.filePath != "" {
		ctx.FilePath = pathutil.ToSlashRelative(b.filePath, b.repoRoot)
		patterns = append(patterns, InferPatterns(ctx.FilePath)...)
	}
	for i := range patterns {
		patterns[i] = strings.ToLower(strings.TrimSpace(patterns[i]))
	}
	ctx.ContextPatterns = uniqueSorted(patterns)

	cats := append([]models.UserDefinedContext(nil), b.categories...)
	if lang := InferLanguage(ctx.FilePath); lang != "" {
		cats = appendCategory(cats, CategoryLanguage, lang)
	}
	if env := strings.TrimSpace(b.environment); env != "" {
		cats = appendCategory(cats, CategoryEnvironment, env)
	}
	if len(cats) > 0 {
		ctx.Categories = cats
	}
	return ctx, nil
}

// appendCategory adds an inferred pair unless the caller declared the
// category already.
func appendCategory(cats []models.UserDefinedContext, category, value string) []models.UserDefinedContext {
	for _, c := range cats {
		if strings.EqualFold(c.Category, category) {
			return cats
		}
	}
	return append(cats, models.UserDefinedContext{Category: category, Value: value, Priority: inferredPriority})
}

// InferLanguage maps a file extension to a language name, or "".
func InferLanguage(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	case ".rb":
		return "ruby"
	case ".java":
		return "java"
	case ".kt":
		return "kotlin"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".sh":
		return "shell"
	case ".sql":
		return "sql"
	case ".md":
		return "markdown"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}

// InferPatterns derives activity patterns from a slash file path.
func InferPatterns(filePath string) []string {
	if filePath == "" {
		return nil
	}
	lower := strings.ToLower(filePath)
	base := path.Base(lower)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var out []string
	switch {
	case strings.HasSuffix(stem, "_test"), strings.HasSuffix(stem, ".test"), strings.HasSuffix(stem, ".spec"),
		strings.HasPrefix(stem, "test_"), hasDir(lower, "test"), hasDir(lower, "tests"), hasDir(lower, "__tests__"):
		out = append(out, PatternTesting)
	}
	switch ext {
	case ".md", ".rst", ".adoc":
		out = append(out, PatternDocumentation)
	case ".yaml", ".yml", ".toml", ".ini", ".json":
		out = append(out, PatternConfiguration)
	}
	return out
}

func hasDir(slashPath, dir string) bool {
	return strings.HasPrefix(slashPath, dir+"/") || strings.Contains(slashPath, "/"+dir+"/")
}

// DetectEnvironment reports the CI provider from well-known environment
// variables, NUDGE_ENV when set, or "development".
func DetectEnvironment() string {
	if env := os.Getenv("NUDGE_ENV"); env != "" {
		return env
	}
	switch {
	case os.Getenv("GITHUB_ACTIONS") != "":
		return "github-actions"
	case os.Getenv("GITLAB_CI") != "":
		return "gitlab-ci"
	case os.Getenv("JENKINS_URL") != "":
		return "jenkins"
	case os.Getenv("CIRCLECI") != "":
		return "circleci"
	}
	if ci := os.Getenv("CI"); ci == "true" || ci == "1" {
		return "ci"
	}
	return "development"
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
