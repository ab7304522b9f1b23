package store

import (
	"fmt"
	"regexp"
	"sort"
)

// Collection names used by learnsync.
const (
	CollectionCourses        = "courses"
	CollectionLessons        = "lessons"
	CollectionOfflineContent = "offlineContent"
	CollectionProgress       = "progress"
	CollectionSyncQueue      = "syncQueue"
	CollectionSyncHistory    = "syncHistory"
	CollectionConflicts      = "conflicts"
)

// Collection describes a named collection.
type Collection struct {
	// Name identifies the collection. Letters, digits and underscores only.
	Name string

	// KeyPath is the top-level JSON field holding each value's primary key.
	KeyPath string

	// Indexes maps index names to the top-level JSON field they order by.
	Indexes map[string]string
}

// DefaultCollections is the learnsync schema.
var DefaultCollections = []Collection{
	{Name: CollectionCourses, KeyPath: "id", Indexes: map[string]string{
		"downloadedAt": "downloadedAt",
	}},
	{Name: CollectionLessons, KeyPath: "key", Indexes: map[string]string{
		"courseId": "courseId",
	}},
	{Name: CollectionOfflineContent, KeyPath: "url", Indexes: map[string]string{
		"cachedAt": "cachedAt",
	}},
	{Name: CollectionProgress, KeyPath: "key", Indexes: map[string]string{
		"courseId": "courseId",
		"synced":   "synced",
	}},
	{Name: CollectionSyncQueue, KeyPath: "id", Indexes: map[string]string{
		"type":      "type",
		"timestamp": "timestamp",
	}},
	{Name: CollectionSyncHistory, KeyPath: "id", Indexes: map[string]string{
		"lastSyncTime": "lastSyncTime",
	}},
	{Name: CollectionConflicts, KeyPath: "id", Indexes: map[string]string{
		"itemId":   "itemId",
		"resolved": "resolved",
	}},
}

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// validate checks that names are safe to embed in SQL identifiers and paths.
func (c Collection) validate() error {
	if !identRe.MatchString(c.Name) {
		return fmt.Errorf("invalid collection name %q", c.Name)
	}
	if !identRe.MatchString(c.KeyPath) {
		return fmt.Errorf("collection %s: invalid key path %q", c.Name, c.KeyPath)
	}
	for name, path := range c.Indexes {
		if !identRe.MatchString(name) || !identRe.MatchString(path) {
			return fmt.Errorf("collection %s: invalid index %q on %q", c.Name, name, path)
		}
	}
	return nil
}

// indexNames returns the collection's index names in sorted order.
func (c Collection) indexNames() []string {
	names := make([]string, 0, len(c.Indexes))
	for name := range c.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sqlIndexName is the physical SQLite index backing a collection index.
func sqlIndexName(collection, index string) string {
	return "idx_" + collection + "_" + index
}

// jsonPath converts a top-level field name to a json_extract path.
func jsonPath(field string) string {
	return "$." + field
}
