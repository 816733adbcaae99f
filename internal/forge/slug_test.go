package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"markdown-to-html", "markdown-to-html"},
		{"Markdown To HTML", "markdown-to-html"},
		{"café_builder", "cafe-builder"},
		{"task/42", "task-42"},
		{"--weird--", "weird"},
		{"UPPER123", "upper123"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Slug(c.in), "input %q", c.in)
	}
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "app-markdown-to-html", RepoName("markdown-to-html"))
	assert.Equal(t, "app-my-task", RepoName("My Task"))
}

func TestRepoNameFromURL(t *testing.T) {
	assert.Equal(t, "app-demo", repoNameFromURL("https://github.com/builder-bot/app-demo"))
	assert.Equal(t, "app-demo", repoNameFromURL("https://github.com/builder-bot/app-demo/"))
	assert.Equal(t, "", repoNameFromURL(""))
}
