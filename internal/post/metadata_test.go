package post

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

const validSource = `---
title: A Test, Post!
tags: linux, , boot ,linux
description: Shaving seconds off boot
date: 2023-03-01
---
# Body
`

func TestParse_Valid(t *testing.T) {
	m, err := Parse([]byte(validSource))
	require.NoError(t, err)

	assert.Equal(t, "A Test, Post!", m.RawTitle)
	assert.Equal(t, []string{"linux", "boot"}, m.Tags)
	assert.Equal(t, "Shaving seconds off boot", m.Description)
	assert.Equal(t, 2023, m.Date.Year())
	assert.False(t, m.Incomplete)
	assert.Equal(t, "# Body\n", m.Body)
	assert.NotEmpty(t, m.Fingerprint)
}

func TestParse_TagsAsList(t *testing.T) {
	m, err := Parse([]byte("---\ntitle: T\ntags: [go, ' yaml ']\ndescription: d\ndate: \"2022-01-02\"\n---\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "yaml"}, m.Tags)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no front matter", "# just markdown\n"},
		{"unclosed", "---\ntitle: x\n"},
		{"missing title", "---\ntags: a\ndescription: d\ndate: 2023-01-01\n---\n"},
		{"missing tags", "---\ntitle: t\ndescription: d\ndate: 2023-01-01\n---\n"},
		{"only empty tags", "---\ntitle: t\ntags: ' , '\ndescription: d\ndate: 2023-01-01\n---\n"},
		{"missing description", "---\ntitle: t\ntags: a\ndate: 2023-01-01\n---\n"},
		{"missing date", "---\ntitle: t\ntags: a\ndescription: d\n---\n"},
		{"bad date", "---\ntitle: t\ntags: a\ndescription: d\ndate: 01/02/2023\n---\n"},
		{"invalid yaml", "---\ntitle: [\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMetadata), "got %v", err)
			assert.Equal(t, perrors.CategoryMetadata, perrors.GetCategory(err))
			assert.False(t, perrors.IsFatal(err))
		})
	}
}

func TestTitle_DraftPrefix(t *testing.T) {
	m := &Metadata{RawTitle: "Work in progress", Incomplete: true}
	assert.Equal(t, "[DRAFT] Work in progress", m.Title())
	m = &Metadata{RawTitle: "Done"}
	assert.Equal(t, "Done", m.Title())
}

func TestSlug(t *testing.T) {
	old, err := Parse([]byte(validSource))
	require.NoError(t, err)

	slug, err := old.Slug(2024)
	require.NoError(t, err)
	assert.Equal(t, "a-test-post", slug)

	_, err = old.Slug(2023)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlugRequired))
	assert.True(t, perrors.IsFatal(err))

	explicit := *old
	explicit.ExplicitSlug = "custom"
	slug, err = explicit.Slug(2000)
	require.NoError(t, err)
	assert.Equal(t, "custom", slug)
}

func TestSanitizeSlug(t *testing.T) {
	tests := map[string]string{
		"A Test, Post!":            "a-test-post",
		" Leading and trailing ":   "leading-and-trailing",
		"Ünïcode & symbols: v1.2_": "ncode--symbols-v1.2_",
		"---":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeSlug(in), in)
	}
}

func TestFullURL(t *testing.T) {
	m := &Metadata{RawTitle: "Hello World", ExplicitSlug: "hello"}
	u, err := m.FullURL("https://example.org/", 2024)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/hello/", u)

	u, err = m.FullURL("https://example.org", 2024)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/hello/", u)
}

func TestHasTag(t *testing.T) {
	m := &Metadata{Tags: []string{"go", "linux"}}
	assert.True(t, m.HasTag("linux"))
	assert.False(t, m.HasTag("Linux"))
}
