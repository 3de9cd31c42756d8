package compare

import (
	"fmt"
	"sort"
	"strings"

	"unixfs-go/internal/manifest"
)

type ChangeType string

const (
	Added    ChangeType = "ADDED"
	Modified ChangeType = "MODIFIED"
	Deleted  ChangeType = "DELETED"
)

type Change struct {
	Type    ChangeType
	Path    string
	OldData *manifest.Entry
	NewData *manifest.Entry
}

type CompareResult struct {
	RootChanged bool
	Added       []Change
	Modified    []Change
	Deleted     []Change
}

func (r *CompareResult) HasChanges() bool {
	return r.RootChanged || len(r.Added) > 0 || len(r.Modified) > 0 || len(r.Deleted) > 0
}

func index(m *manifest.Manifest) map[string]manifest.Entry {
	entries := make(map[string]manifest.Entry, len(m.Entries))
	for _, e := range m.Entries {
		entries[e.Path] = e
	}
	return entries
}

// Compare reports the directories whose CID differs between two manifests.
// A changed file shows up as every directory on its path being modified.
func Compare(oldManifest, newManifest *manifest.Manifest) *CompareResult {
	result := &CompareResult{
		RootChanged: oldManifest.Root != newManifest.Root,
		Added:       make([]Change, 0),
		Modified:    make([]Change, 0),
		Deleted:     make([]Change, 0),
	}

	oldEntries := index(oldManifest)
	newEntries := index(newManifest)

	// Check for added and modified directories
	for path, newData := range newEntries {
		if oldData, exists := oldEntries[path]; exists {
			if oldData.Cid != newData.Cid {
				oldDataCopy := oldData
				newDataCopy := newData
				result.Modified = append(result.Modified, Change{
					Type:    Modified,
					Path:    path,
					OldData: &oldDataCopy,
					NewData: &newDataCopy,
				})
			}
		} else {
			newDataCopy := newData
			result.Added = append(result.Added, Change{
				Type:    Added,
				Path:    path,
				NewData: &newDataCopy,
			})
		}
	}

	// Check for deleted directories
	for path, oldData := range oldEntries {
		if _, exists := newEntries[path]; !exists {
			oldDataCopy := oldData
			result.Deleted = append(result.Deleted, Change{
				Type:    Deleted,
				Path:    path,
				OldData: &oldDataCopy,
			})
		}
	}

	// Sort for deterministic output
	sort.Slice(result.Added, func(i, j int) bool {
		return result.Added[i].Path < result.Added[j].Path
	})
	sort.Slice(result.Modified, func(i, j int) bool {
		return result.Modified[i].Path < result.Modified[j].Path
	})
	sort.Slice(result.Deleted, func(i, j int) bool {
		return result.Deleted[i].Path < result.Deleted[j].Path
	})

	return result
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func FormatReport(result *CompareResult) string {
	if !result.HasChanges() {
		return "No changes detected."
	}

	var report strings.Builder
	report.WriteString("Changes detected:\n\n")

	if len(result.Added) > 0 {
		fmt.Fprintf(&report, "ADDED (%d directories):\n", len(result.Added))
		for _, change := range result.Added {
			fmt.Fprintf(&report, "  + %s (cid: %s, size: %d bytes)\n",
				displayPath(change.Path), change.NewData.Cid, change.NewData.Size)
		}
		report.WriteString("\n")
	}

	if len(result.Modified) > 0 {
		fmt.Fprintf(&report, "MODIFIED (%d directories):\n", len(result.Modified))
		for _, change := range result.Modified {
			fmt.Fprintf(&report, "  ~ %s\n", displayPath(change.Path))
			fmt.Fprintf(&report, "    Old: cid=%s, size=%d bytes\n", change.OldData.Cid, change.OldData.Size)
			fmt.Fprintf(&report, "    New: cid=%s, size=%d bytes\n", change.NewData.Cid, change.NewData.Size)
		}
		report.WriteString("\n")
	}

	if len(result.Deleted) > 0 {
		fmt.Fprintf(&report, "DELETED (%d directories):\n", len(result.Deleted))
		for _, change := range result.Deleted {
			fmt.Fprintf(&report, "  - %s (cid: %s, size: %d bytes)\n",
				displayPath(change.Path), change.OldData.Cid, change.OldData.Size)
		}
		report.WriteString("\n")
	}

	fmt.Fprintf(&report, "Summary: %d added, %d modified, %d deleted\n",
		len(result.Added), len(result.Modified), len(result.Deleted))

	return report.String()
}
