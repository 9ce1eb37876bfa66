// Package sections splits a markdown master-memory file into heading-keyed
// sections for import into the memory ledger.
package sections

import "strings"

// Section is one heading-delimited block of a master memory file.
type Section struct {
	Heading string
	Body    string
}

// Split breaks text on markdown heading lines. Content before the first
// heading becomes a section with an empty heading. Blank sections are
// dropped.
func Split(text string) []Section {
	lines := strings.Split(text, "\n")

	var out []Section
	current := Section{}
	var body []string

	flush := func() {
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Body != "" {
			out = append(out, current)
		}
		body = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			current = Section{Heading: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))}
			continue
		}
		body = append(body, line)
	}
	flush()

	return out
}

// Category normalizes a section heading into a ledger category tag:
// lowercase, spaces to hyphens, empty headings become "general".
func Category(heading string) string {
	h := strings.ToLower(strings.TrimSpace(heading))
	if h == "" {
		return "general"
	}
	return strings.ReplaceAll(h, " ", "-")
}
