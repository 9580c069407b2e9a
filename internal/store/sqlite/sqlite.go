// Package sqlite is the SQLite-backed demo repository. It uses the pure-Go
// modernc.org/sqlite driver, so no cgo toolchain is required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/store"
)

// Fixed-width UTC layout so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const demoColumns = `demo_id, name, logo, status, is_active, error_message, error_user_message,
	created_at, updated_at, deleted_at, created_by, updated_by, deleted_by`

// Store implements demo.Repository on a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database named by dsn. A bare path or
// a "file:" URI is accepted; foreign keys and a busy timeout are enabled.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "sqlite")}, nil
}

func normalizeDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDemo(row scanner) (demo.Demo, error) {
	var (
		d                                 demo.Demo
		status, created, updated          string
		logo, errMsg, errUserMsg, deleted sql.NullString
		updatedBy, deletedBy              sql.NullString
	)
	err := row.Scan(&d.DemoID, &d.Name, &logo, &status, &d.IsActive, &errMsg, &errUserMsg,
		&created, &updated, &deleted, &d.CreatedBy, &updatedBy, &deletedBy)
	if err != nil {
		return demo.Demo{}, err
	}
	d.Logo = stringPtr(logo)
	d.Status = demo.Status(status)
	d.ErrorMessage = stringPtr(errMsg)
	d.ErrorUserMessage = stringPtr(errUserMsg)
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	if deleted.Valid {
		t := parseTime(deleted.String)
		d.DeletedAt = &t
	}
	d.UpdatedBy = stringPtr(updatedBy)
	d.DeletedBy = stringPtr(deletedBy)
	return d, nil
}

func demoArgs(d demo.Demo) []any {
	return []any{
		d.DemoID, d.Name, nullString(d.Logo), string(d.Status), d.IsActive,
		nullString(d.ErrorMessage), nullString(d.ErrorUserMessage),
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt), nullTime(d.DeletedAt),
		d.CreatedBy, nullString(d.UpdatedBy), nullString(d.DeletedBy),
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDemo(ctx context.Context, db execer, d demo.Demo) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO demos (`+demoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		demoArgs(d)...)
	return err
}

func (s *Store) CreateDemo(ctx context.Context, d demo.Demo) error {
	if err := insertDemo(ctx, s.db, d); err != nil {
		return fmt.Errorf("failed to create demo: %w", err)
	}
	return nil
}

func (s *Store) GetDemo(ctx context.Context, id string) (demo.Demo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+demoColumns+` FROM demos WHERE demo_id = ?`, id)
	d, err := scanDemo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return demo.Demo{}, fmt.Errorf("demo %s: %w", id, demo.ErrNotFound)
	}
	if err != nil {
		return demo.Demo{}, fmt.Errorf("failed to load demo %s: %w", id, err)
	}
	return d, nil
}

func (s *Store) UpdateDemo(ctx context.Context, d demo.Demo) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE demos SET
			name = ?, logo = ?, status = ?, is_active = ?, error_message = ?, error_user_message = ?,
			updated_at = ?, deleted_at = ?, updated_by = ?, deleted_by = ?
		WHERE demo_id = ?`,
		d.Name, nullString(d.Logo), string(d.Status), d.IsActive,
		nullString(d.ErrorMessage), nullString(d.ErrorUserMessage),
		formatTime(d.UpdatedAt), nullTime(d.DeletedAt), nullString(d.UpdatedBy), nullString(d.DeletedBy),
		d.DemoID,
	)
	if err != nil {
		return fmt.Errorf("failed to update demo %s: %w", d.DemoID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("demo %s: %w", d.DemoID, demo.ErrNotFound)
	}
	return nil
}

func (s *Store) ListDemos(ctx context.Context, q demo.ListQuery) (demo.Page, error) {
	where, args := buildWhere(q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM demos WHERE `+where, args...).Scan(&total); err != nil {
		return demo.Page{}, fmt.Errorf("failed to count demos: %w", err)
	}

	field, desc := demo.ParseOrder(q.OrderBy)
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	// field is one of the whitelisted column names returned by ParseOrder.
	query := fmt.Sprintf(`SELECT %s FROM demos WHERE %s ORDER BY %s %s, rowid ASC LIMIT ? OFFSET ?`,
		demoColumns, where, field, dir)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return demo.Page{}, fmt.Errorf("failed to list demos: %w", err)
	}
	defer rows.Close()

	items := make([]demo.Demo, 0)
	for rows.Next() {
		d, err := scanDemo(rows)
		if err != nil {
			return demo.Page{}, fmt.Errorf("failed to scan demo: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return demo.Page{}, fmt.Errorf("error iterating demos: %w", err)
	}
	return demo.Page{Items: items, Total: total}, nil
}

func (s *Store) AddMember(ctx context.Context, m demo.Member) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO demo_members (demo_id, user_id, role, created_at, created_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (demo_id, user_id) DO NOTHING`,
		m.DemoID, m.UserID, string(m.Role), formatTime(m.CreatedAt), m.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s in demo %s: %w", m.UserID, m.DemoID, demo.ErrMemberExists)
	}
	return nil
}

var memberOrderColumns = map[string]string{
	"created_at": "created_at",
	"role":       "role",
	"user_id":    "user_id",
}

func (s *Store) ListMembers(ctx context.Context, demoID string, q demo.MemberQuery) (demo.MemberPage, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM demo_members WHERE demo_id = ?`, demoID).Scan(&total); err != nil {
		return demo.MemberPage{}, fmt.Errorf("failed to count members: %w", err)
	}

	field, desc := demo.ParseMemberOrder(q.OrderBy)
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT demo_id, user_id, role, created_at, created_by
		FROM demo_members WHERE demo_id = ?
		ORDER BY %s %s, rowid ASC LIMIT ? OFFSET ?`, memberOrderColumns[field], dir)
	rows, err := s.db.QueryContext(ctx, query, demoID, q.Limit, q.Offset)
	if err != nil {
		return demo.MemberPage{}, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	items := make([]demo.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return demo.MemberPage{}, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return demo.MemberPage{}, fmt.Errorf("error iterating members: %w", err)
	}
	return demo.MemberPage{Items: items, Total: total}, nil
}

func scanMember(row scanner) (demo.Member, error) {
	var m demo.Member
	var role, created string
	if err := row.Scan(&m.DemoID, &m.UserID, &role, &created, &m.CreatedBy); err != nil {
		return demo.Member{}, fmt.Errorf("failed to scan member: %w", err)
	}
	m.Role = demo.Role(role)
	m.CreatedAt = parseTime(created)
	return m, nil
}

// Snapshot returns every demo and membership in the admin state format.
func (s *Store) Snapshot(ctx context.Context) (any, error) {
	st := store.State{Demos: map[string]demo.Demo{}, Members: []demo.Member{}}

	rows, err := s.db.QueryContext(ctx, `SELECT `+demoColumns+` FROM demos ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot demos: %w", err)
	}
	for rows.Next() {
		d, err := scanDemo(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan demo: %w", err)
		}
		st.Demos[d.DemoID] = d
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT demo_id, user_id, role, created_at, created_by FROM demo_members ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		st.Members = append(st.Members, m)
	}
	return st, rows.Err()
}

// LoadState replaces all rows with the content of a JSON state document.
func (s *Store) LoadState(ctx context.Context, data []byte) error {
	var st store.State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := clearAll(ctx, tx); err != nil {
		return err
	}
	for _, d := range st.Demos {
		if err := insertDemo(ctx, tx, d); err != nil {
			return fmt.Errorf("loading demo %s: %w", d.DemoID, err)
		}
	}
	for _, m := range st.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO demo_members (demo_id, user_id, role, created_at, created_by) VALUES (?, ?, ?, ?, ?)`,
			m.DemoID, m.UserID, string(m.Role), formatTime(m.CreatedAt), m.CreatedBy,
		); err != nil {
			return fmt.Errorf("loading member %s of %s: %w", m.UserID, m.DemoID, err)
		}
	}
	return tx.Commit()
}

// Reset deletes every demo and membership. The schema is kept.
func (s *Store) Reset(ctx context.Context) error {
	return clearAll(ctx, s.db)
}

func clearAll(ctx context.Context, db execer) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM demo_members`); err != nil {
		return fmt.Errorf("clearing members: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM demos`); err != nil {
		return fmt.Errorf("clearing demos: %w", err)
	}
	return nil
}
