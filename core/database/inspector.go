package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo describes one column of a shadow-database table.
type ColumnInfo struct {
	Field   string
	Type    string
	NotNull bool
	Pk      bool
}

// GetTableColumns retrieves the column definitions for a given table. A
// non-existent table yields an empty slice, not an error.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	type sqliteColumn struct {
		Cid        int
		Name       string
		Type       string
		Notnull    int
		DefaultVal *string
		Pk         int
	}
	var raw []sqliteColumn
	if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", tableName)).Scan(&raw).Error; err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}
	var columns []ColumnInfo
	for _, col := range raw {
		columns = append(columns, ColumnInfo{
			Field:   strings.ToLower(col.Name),
			Type:    strings.ToLower(col.Type),
			NotNull: col.Notnull != 0,
			Pk:      col.Pk != 0,
		})
	}
	return columns, nil
}
