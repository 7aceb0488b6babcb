package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCategorize(t *testing.T) {
	c := New()

	tests := []struct {
		name    string
		title   string
		content string
		want    string
	}{
		{"programming keyword", "Golang 1.25 is out", "", "programming"},
		{"devops keyword", "Deploying with Kubernetes", "helm charts included", "devops"},
		{"ai keyword", "New LLM benchmark", "", "ai"},
		{"first matching rule wins", "Python script for Docker", "", "programming"},
		{"case insensitive", "BITCOIN hits new high", "", "crypto"},
		{"keyword in content only", "Morning links", "the startup raised funding", "business"},
		{"no match", "Cooking pasta", "boil water first", Uncategorized},
		{"empty input", "", "", Uncategorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Categorize(tt.title, tt.content); got != tt.want {
				t.Errorf("Categorize(%q, %q) = %q, want %q", tt.title, tt.content, got, tt.want)
			}
		})
	}
}

func TestHashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "plain text without tags", nil},
		{"single", "check out #golang today", []string{"golang"}},
		{"multiple with punctuation", "great post! #sre, #postmortem.", []string{"sre", "postmortem"}},
		{"duplicates removed", "#go and #go again", []string{"go"}},
		{"bare hash ignored", "just a # sign", nil},
		{"empty input", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Hashtags(tt.text)); diff != "" {
				t.Errorf("Hashtags(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}
