// Package classify assigns categories and tags to notes by keyword rules.
package classify

import (
	"strings"
	"unicode"
)

// Uncategorized is the fallback category when no rule matches.
const Uncategorized = "uncategorized"

type rule struct {
	category string
	keywords []string
}

// Classifier maps note text to a category using an ordered keyword table.
// Rules are checked in order; the first match wins.
type Classifier struct {
	rules []rule
}

// New returns a Classifier with the default rule table.
func New() *Classifier {
	return &Classifier{
		rules: []rule{
			{category: "programming", keywords: []string{"golang", "python", "javascript", "rust", "programming", "code", "github", "compiler", "api"}},
			{category: "devops", keywords: []string{"kubernetes", "docker", "terraform", "ci/cd", "devops", "ansible", "helm"}},
			{category: "ai", keywords: []string{"machine learning", "neural", "llm", "gpt", "artificial intelligence", " ai ", "deep learning"}},
			{category: "crypto", keywords: []string{"bitcoin", "ethereum", "blockchain", "crypto", "defi"}},
			{category: "science", keywords: []string{"research", "study", "physics", "biology", "science", "arxiv"}},
			{category: "business", keywords: []string{"startup", "funding", "acquisition", "ipo", "revenue", "market"}},
			{category: "video", keywords: []string{"video", "stream", "episode", "watch"}},
			{category: "news", keywords: []string{"breaking", "report", "announce", "release"}},
		},
	}
}

// Categorize returns the category for the given title and content, or
// Uncategorized when no rule matches.
func (c *Classifier) Categorize(title, content string) string {
	text := strings.ToLower(title + " " + content)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return Uncategorized
}

// Hashtags extracts #tag tokens from text, without the leading hash.
func Hashtags(text string) []string {
	if text == "" {
		return nil
	}
	var tags []string
	seen := make(map[string]bool)
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if !strings.HasPrefix(word, "#") || len(word) < 2 {
			continue
		}
		tag := strings.TrimLeft(word, "#")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
