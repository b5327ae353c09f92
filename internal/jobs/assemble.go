package jobs

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const sectionDelimiter = "\n"

// placeholders are description values that carry no information about the job.
var placeholders = []string{
	"no description",
	"n/a",
	"na",
	"to be updated",
	"tbd",
	"null",
	"undefined",
}

// AssembledText is the canonical descriptive text of a posting together with
// the data-quality signals used by ranking penalties.
type AssembledText struct {
	Text                string
	HasValidDescription bool
	// Length is the number of characters (runes) in Text.
	Length int
}

// Assemble builds the text embedded and reranked for a posting. Sections are
// appended in a fixed order and empty sections are omitted.
func Assemble(p *Posting) AssembledText {
	if p == nil {
		return AssembledText{}
	}

	var sections []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}

	add(p.Title)

	valid := IsValidDescription(p.Description)
	if valid {
		add(p.Description)
	}

	if loc := strings.TrimSpace(p.Location); loc != "" {
		add("location: " + loc)
	}
	if exp := strings.TrimSpace(p.Experience); exp != "" {
		add("experience required: " + exp)
	}
	add(salarySection(p.SalaryMin, p.SalaryMax))

	names := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if name := strings.TrimSpace(c.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		add("categories: " + strings.Join(names, ", "))
	}

	if name := strings.TrimSpace(p.Employer.Name); name != "" {
		add("employer: " + name)
	}
	if industry := strings.TrimSpace(p.Employer.Industry); industry != "" {
		add("industry: " + industry)
	}
	if about := strings.TrimSpace(p.Employer.About); about != "" {
		add("about employer: " + about)
	}

	text := strings.Join(sections, sectionDelimiter)
	return AssembledText{
		Text:                text,
		HasValidDescription: valid,
		Length:              utf8.RuneCountInString(text),
	}
}

func salarySection(from, to *int) string {
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("salary: %d – %d", *from, *to)
	case from != nil:
		return fmt.Sprintf("salary: from %d", *from)
	case to != nil:
		return fmt.Sprintf("salary: up to %d", *to)
	default:
		return ""
	}
}

// IsValidDescription reports whether a description carries real content.
// Empty values and values equal to or containing a placeholder as a
// standalone token are rejected. "na" inside "banana" does not count.
func IsValidDescription(desc string) bool {
	normalized := strings.ToLower(strings.TrimSpace(desc))
	if normalized == "" {
		return false
	}

	for _, placeholder := range placeholders {
		if normalized == placeholder || containsToken(normalized, placeholder) {
			return false
		}
	}

	return true
}

// containsToken reports whether token occurs in s bounded on both sides by a
// non-alphanumeric character or the edge of the string.
func containsToken(s, token string) bool {
	for offset := 0; offset < len(s); {
		idx := strings.Index(s[offset:], token)
		if idx < 0 {
			return false
		}

		start := offset + idx
		end := start + len(token)
		if isBoundary(s, start, true) && isBoundary(s, end, false) {
			return true
		}

		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}

	return false
}

func isBoundary(s string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(s[:pos])
	} else {
		if pos >= len(s) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(s[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
