package index

import (
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestVerifyTables(t *testing.T) {
	store := setupStore(t, "verify_ok")

	problems, err := store.VerifyTables()
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestVerifyTablesReportsDefects(t *testing.T) {
	store := setupStore(t, "verify_defects")

	require.NoError(t, store.db.Exec("ALTER TABLE notes DROP COLUMN mod").Error)
	require.NoError(t, store.db.Exec("DROP TABLE media").Error)

	problems, err := store.VerifyTables()
	require.NoError(t, err)
	assert.Contains(t, problems, `table "notes" is missing column "mod"`)
	assert.Contains(t, problems, `table "media" is missing`)
}

func TestVerifyTablesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	// The sqlite dialector probes the engine version on open.
	mock.ExpectQuery("select sqlite_version").
		WillReturnRows(sqlmock.NewRows([]string{"sqlite_version()"}).AddRow("3.45.0"))

	dialector := sqlite.Dialector{Conn: db}
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery("PRAGMA table_info").WillReturnError(fmt.Errorf("database is locked"))

	store := &Store{db: gormDB}
	_, err = store.VerifyTables()
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
