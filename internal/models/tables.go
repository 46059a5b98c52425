package models

import "fmt"

// TableName identifies one of the tracked entity tables. The set is closed:
// adding a table means adding a constant here and a migration.
type TableName string

const (
	TableEvents        TableName = "events"
	TablePeople        TableName = "people"
	TableLocations     TableName = "locations"
	TableSections      TableName = "sections"
	TableResources     TableName = "resources"
	TableAnnouncements TableName = "announcements"
	TableSocialPosts   TableName = "social_posts"
	TableMarkdownPages TableName = "markdown_pages"
)

// TrackedTables lists every tracked table in a stable order.
var TrackedTables = []TableName{
	TableEvents,
	TablePeople,
	TableLocations,
	TableSections,
	TableResources,
	TableAnnouncements,
	TableSocialPosts,
	TableMarkdownPages,
}

// Valid reports whether t is a tracked table.
func (t TableName) Valid() bool {
	for _, known := range TrackedTables {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTableName converts a raw identifier into a TableName
func ParseTableName(raw string) (TableName, error) {
	t := TableName(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, raw)
	}
	return t, nil
}
