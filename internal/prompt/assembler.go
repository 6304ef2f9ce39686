// Package prompt assembles the system prompt for one assistant turn from a
// fixed registry of section builders.
package prompt

import (
	"sort"
	"strings"
)

// Section is one block of the system prompt.
type Section struct {
	Name     string
	Tag      string
	Content  string
	Priority int
}

// Render wraps tagged sections as <tag>content</tag>; untagged sections are
// returned as-is.
func (s Section) Render() string {
	if s.Tag == "" {
		return s.Content
	}
	return "<" + s.Tag + ">" + s.Content + "</" + s.Tag + ">"
}

type Builder func(Context) Section

type registration struct {
	priority int
	build    Builder
	// examples is set on the few-shot section, which Options can turn off.
	examples bool
}

// registry is the complete, ordered list of sections. Adding a section
// means adding one entry here.
var registry = []registration{
	{priority: 10, build: rulesSection},
	{priority: 20, build: identitySection},
	{priority: 25, build: contextSection},
	{priority: 30, build: toolsSection},
	{priority: 35, build: datesSection},
	{priority: 40, build: conversationSection},
	{priority: 45, build: formattingSection},
	{priority: 50, build: guidelinesSection},
	{priority: 60, build: examplesSection, examples: true},
}

type Options struct {
	IncludeExamples bool
}

// Sections runs every registered builder and returns the non-empty results
// in ascending priority.
func Sections(c Context, opts Options) []Section {
	sections := make([]Section, 0, len(registry))
	for _, r := range registry {
		if r.examples && !opts.IncludeExamples {
			continue
		}
		s := r.build(c)
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		s.Priority = r.priority
		sections = append(sections, s)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Priority < sections[j].Priority
	})
	return sections
}

// Build returns the full system prompt. Equal contexts give byte-identical
// prompts.
func Build(c Context, opts Options) string {
	sections := Sections(c, opts)
	rendered := make([]string, len(sections))
	for i, s := range sections {
		rendered[i] = s.Render()
	}
	return strings.Join(rendered, "\n\n")
}
