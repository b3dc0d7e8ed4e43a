package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/database"
)

// Repository defines the record store operations used by the Service.
// Implementations classify their failures as *StoreError.
type Repository interface {
	// Create inserts a new record and fills its timestamps.
	// Fails with ErrIntegrity if the student_id already exists.
	Create(ctx context.Context, s *Student) error

	// GetByID returns the record or fails with ErrNotFound.
	GetByID(ctx context.Context, id string) (*Student, error)

	// List returns all records ordered by student_id.
	List(ctx context.Context) ([]Student, error)

	// Update applies a partial update and returns the resulting record.
	// Fails with ErrNotFound if no row matched.
	Update(ctx context.Context, id string, u Update) (*Student, error)

	// Delete removes a record. Fails with ErrNotFound if no row matched.
	Delete(ctx context.Context, id string) error
}

// timeLayout is the stored timestamp format. It fits the VARCHAR(32)
// columns and sorts lexically.
const timeLayout = time.RFC3339Nano

const selectColumns = `SELECT student_id, name, profile_image, qr_code, created_at, updated_at FROM students`

// SQLRepository implements Repository on top of database.DB. The same SQL
// runs on every supported driver.
type SQLRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLRepository creates a repository backed by db.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts s and sets its CreatedAt and UpdatedAt.
func (r *SQLRepository) Create(ctx context.Context, s *Student) error {
	now := r.now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (student_id, name, profile_image, qr_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.StudentID,
		s.Name,
		s.ProfileImage,
		s.QRCode,
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return classifyStoreError(OpCreate, s.StudentID, err)
	}

	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetByID retrieves a record by its student_id.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE student_id = ?`, id)

	s, err := scanStudent(row)
	if err != nil {
		return nil, classifyStoreError(OpGet, id, err)
	}
	return s, nil
}

// List returns every record ordered by student_id.
func (r *SQLRepository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY student_id`)
	if err != nil {
		return nil, classifyStoreError(OpList, "", err)
	}
	defer rows.Close()

	students := make([]Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, classifyStoreError(OpList, "", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(OpList, "", err)
	}

	return students, nil
}

// Update changes the fields set in u and returns the updated record.
// The write and the read-back share a transaction.
func (r *SQLRepository) Update(ctx context.Context, id string, u Update) (*Student, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.ProfileImage != nil {
		sets = append(sets, "profile_image = ?")
		args = append(args, *u.ProfileImage)
	}
	if u.QRCode != nil {
		sets = append(sets, "qr_code = ?")
		args = append(args, *u.QRCode)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().Format(timeLayout), id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyStoreError(OpUpdate, id, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx,
		"UPDATE students SET "+strings.Join(sets, ", ")+" WHERE student_id = ?",
		args...,
	)
	if err != nil {
		return nil, classifyStoreError(OpUpdate, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, classifyStoreError(OpUpdate, id, err)
	}
	if affected == 0 {
		return nil, &StoreError{Op: OpUpdate, StudentID: id, Kind: KindNotFound}
	}

	s, err := scanStudent(tx.QueryRowContext(ctx, selectColumns+` WHERE student_id = ?`, id))
	if err != nil {
		return nil, classifyStoreError(OpUpdate, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyStoreError(OpUpdate, id, err)
	}
	return s, nil
}

// Delete removes the record with the given student_id.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = ?`, id)
	if err != nil {
		return classifyStoreError(OpDelete, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return classifyStoreError(OpDelete, id, err)
	}
	if affected == 0 {
		return &StoreError{Op: OpDelete, StudentID: id, Kind: KindNotFound}
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*Student, error) {
	var s Student
	var createdAt, updatedAt string

	if err := row.Scan(&s.StudentID, &s.Name, &s.ProfileImage, &s.QRCode, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &s, nil
}

// Driver error codes treated as integrity violations.
const (
	pgIntegrityClass      = "23" // SQLSTATE class 23: integrity constraint violation
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	sqliteUniqueConstText = "UNIQUE constraint failed"
)

// classifyStoreError wraps a driver error in a *StoreError of the right kind.
func classifyStoreError(op, id string, err error) error {
	kind := KindTransient
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind = KindNotFound
	case isIntegrityError(err):
		kind = KindIntegrity
	}
	if kind == KindNotFound {
		err = nil
	}
	return &StoreError{Op: op, StudentID: id, Kind: kind, Err: err}
}

// isIntegrityError recognises constraint violations from each driver.
func isIntegrityError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, pgIntegrityClass)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlRowIsReferenced, mysqlNoReferencedRow:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}

	return strings.Contains(err.Error(), sqliteUniqueConstText)
}
