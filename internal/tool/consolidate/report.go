package consolidate

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// renderReport produces the markdown summary of a single merge: metadata,
// preserved/archived capability lists, and a unified diff of the canonical
// file against the superseded source.
func renderReport(canonicalRel, sourceRel string, version Version, canonicalContent, sourceContent string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(sourceContent),
		B:        difflib.SplitLines(canonicalContent),
		FromFile: sourceRel,
		ToFile:   canonicalRel,
		Context:  3,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Consolidation Report\n\n")
	fmt.Fprintf(&b, "- **Canonical file:** `%s`\n", canonicalRel)
	fmt.Fprintf(&b, "- **Superseded source:** `%s`\n", sourceRel)
	fmt.Fprintf(&b, "- **Version:** %s\n", version.Version)
	fmt.Fprintf(&b, "- **Timestamp:** %s\n", version.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "- **Source content hash:** `%s`\n", version.ContentHash)
	fmt.Fprintf(&b, "- **Merged by:** %s\n", version.MergedBy)
	if version.Reason != "" {
		fmt.Fprintf(&b, "- **Reason:** %s\n", version.Reason)
	}

	b.WriteString("\n## Preserved capabilities\n\n")
	writeCapabilityList(&b, version.PreservedCapabilities)

	b.WriteString("\n## Archived capabilities\n\n")
	writeCapabilityList(&b, version.ArchivedCapabilities)

	b.WriteString("\n## Diff (source vs canonical)\n\n")
	if diff == "" {
		b.WriteString("No textual differences.\n")
	} else {
		fmt.Fprintf(&b, "```diff\n%s```\n", diff)
	}

	return b.String(), nil
}

func writeCapabilityList(b *strings.Builder, names []string) {
	if len(names) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, name := range names {
		fmt.Fprintf(b, "- `%s`\n", name)
	}
}
