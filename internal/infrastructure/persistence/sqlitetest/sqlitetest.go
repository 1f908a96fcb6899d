// Package sqlitetest opens migrated sqlite databases and seeds directory
// rows for tests
package sqlitetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/paydesk/settlement-engine/migrations"
	"github.com/paydesk/settlement-engine/pkg/database"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Open creates a fresh database file under t.TempDir with every migration
// applied. It is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "settlement.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
	}, logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db.DB
}

func mustInsert(t testing.TB, db *sql.DB, query string, args ...interface{}) int64 {
	t.Helper()
	result, err := db.Exec(query, args...)
	if err != nil {
		t.Fatalf("seed %q: %v", query, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed last insert id: %v", err)
	}
	return id
}

// Organization inserts an organization with balance
func Organization(t testing.TB, db *sql.DB, name string, balance decimal.Decimal) int64 {
	return mustInsert(t, db, `INSERT INTO organizations (name, balance) VALUES (?, ?)`, name, balance.String())
}

// User inserts a directory user. orgID 0 means no organization.
func User(t testing.TB, db *sql.DB, orgID int64, email, role string) int64 {
	var org interface{}
	if orgID != 0 {
		org = orgID
	}
	return mustInsert(t, db,
		`INSERT INTO users (organization_id, email, full_name, role) VALUES (?, ?, ?, ?)`,
		org, email, email, role)
}

// Vendor inserts a vendor. userID 0 means no linked user.
func Vendor(t testing.TB, db *sql.DB, orgID int64, name string, userID int64) int64 {
	var user interface{}
	if userID != 0 {
		user = userID
	}
	return mustInsert(t, db,
		`INSERT INTO vendors (organization_id, name, email, user_id, bank_account_no, ifsc_code) VALUES (?, ?, ?, ?, ?, ?)`,
		orgID, name, name+"@vendor.test", user, "000111222", "IFSC0001")
}

// Grade describes salary grade components. Empty strings are stored as NULL.
type Grade struct {
	Code       string
	Basic      string
	HRA        string
	DA         string
	Allowances string
	PF         string
}

// SalaryGrade inserts a salary grade
func SalaryGrade(t testing.TB, db *sql.DB, orgID int64, g Grade) int64 {
	return mustInsert(t, db,
		`INSERT INTO salary_grades (organization_id, grade_code, basic_salary, hra, da, allowances, pf) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orgID, g.Code, nullable(g.Basic), nullable(g.HRA), nullable(g.DA), nullable(g.Allowances), nullable(g.PF))
}

// Employee inserts an employee payee. Zero ids are stored as NULL.
func Employee(t testing.TB, db *sql.DB, orgID int64, name string, userID, gradeID int64) int64 {
	return payee(t, db, "employees", orgID, name, userID, gradeID)
}

// OrgAdmin inserts an org admin payee. Zero ids are stored as NULL.
func OrgAdmin(t testing.TB, db *sql.DB, orgID int64, name string, userID, gradeID int64) int64 {
	return payee(t, db, "org_admins", orgID, name, userID, gradeID)
}

func payee(t testing.TB, db *sql.DB, table string, orgID int64, name string, userID, gradeID int64) int64 {
	return mustInsert(t, db,
		`INSERT INTO `+table+` (organization_id, name, email, department, user_id, salary_grade_id, bank_account_no) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orgID, name, name+"@payee.test", "Engineering", nullableID(userID), nullableID(gradeID), "999888777")
}

// Balance reads the stored balance of an organization or vendor table row
func Balance(t testing.TB, db *sql.DB, table string, id int64) decimal.Decimal {
	t.Helper()
	var raw string
	if err := db.QueryRow(`SELECT balance FROM `+table+` WHERE id = ?`, id).Scan(&raw); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return decimal.RequireFromString(raw)
}

// Count returns the number of rows in table matching where
func Count(t testing.TB, db *sql.DB, table, where string, args ...interface{}) int {
	t.Helper()
	query := `SELECT COUNT(*) FROM ` + table
	if where != "" {
		query += ` WHERE ` + where
	}
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
