package suggest

import (
	"fmt"
	"strings"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

const maxContextChars = 600

// BuildPrompt renders the instructions sent to a generator for req.
func BuildPrompt(req Request) (string, error) {
	childType, err := req.ChildType()
	if err != nil {
		return "", err
	}
	count := req.Count
	if count <= 0 {
		count = 3
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are helping plan go-to-market content. Propose %d new %s items", count, label(childType))
	if req.Parent.ID == "" {
		b.WriteString(".\n")
	} else {
		fmt.Fprintf(&b, " for the %s below.\n\n", label(req.Parent.Type))
		fmt.Fprintf(&b, "## %s: %s\n", req.Parent.Type, req.Parent.Name)
		if d := strings.TrimSpace(req.Parent.Description); d != "" {
			b.WriteString(truncate(d, maxContextChars))
			b.WriteString("\n")
		}
		writeTargeting(&b, req.Parent.Targeting)
	}

	if len(req.Siblings) > 0 {
		b.WriteString("\n## Already planned (do not repeat)\n")
		for _, s := range req.Siblings {
			fmt.Fprintf(&b, "- %s\n", s.Name)
		}
	}
	if h := strings.TrimSpace(req.Hint); h != "" {
		fmt.Fprintf(&b, "\n## Guidance\n%s\n", h)
	}

	fmt.Fprintf(&b, "\nReply with only a JSON array. Each element is an object with "+
		"\"name\" (at most %d characters) and \"description\", and may include \"targeting\" "+
		"with \"industries\", \"regions\", \"job_roles\" and \"accounts\" string arrays.\n",
		content.MaxNameLen)
	return b.String(), nil
}

func writeTargeting(b *strings.Builder, t content.Targeting) {
	for _, f := range []struct {
		name string
		vals []string
	}{
		{"Industries", t.Industries},
		{"Regions", t.Regions},
		{"Job roles", t.JobRoles},
		{"Accounts", t.Accounts},
	} {
		if len(f.vals) > 0 {
			fmt.Fprintf(b, "%s: %s\n", f.name, strings.Join(f.vals, ", "))
		}
	}
}

func label(t content.ItemType) string {
	switch t {
	case content.TypeBestPractice:
		return "best practice"
	default:
		return strings.ToLower(t.String())
	}
}

// truncate cuts s to at most n bytes on a rune boundary, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
