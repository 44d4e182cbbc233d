package index

import (
	"fmt"
	"sort"

	"notehub-sync/core/database"
)

// requiredColumns lists, per shadow table, the columns the sync engine reads
// and writes. Extra columns are fine; missing ones mean the database was
// created by an incompatible version.
var requiredColumns = map[string][]string{
	"notes":       {"remote_id", "collection_id", "local_id", "schema_id", "fields", "tags", "mod", "deleted"},
	"schemas":     {"schema_id", "collection_id", "name", "layout"},
	"media":       {"name", "collection_id", "content_hash", "exists_on_storage", "download_enabled"},
	"collections": {"collection_id", "name", "container_id", "latest_update", "delete_policy"},
}

// VerifyTables checks that the shadow database carries every table and column
// the engine depends on. It returns a human-readable problem per defect; an
// empty slice means the database is usable.
func (s *Store) VerifyTables() ([]string, error) {
	tables := make([]string, 0, len(requiredColumns))
	for table := range requiredColumns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var problems []string
	for _, table := range tables {
		columns, err := database.GetTableColumns(s.db, table)
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			problems = append(problems, fmt.Sprintf("table %q is missing", table))
			continue
		}
		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[col.Field] = struct{}{}
		}
		for _, name := range requiredColumns[table] {
			if _, ok := present[name]; !ok {
				problems = append(problems, fmt.Sprintf("table %q is missing column %q", table, name))
			}
		}
	}
	return problems, nil
}
