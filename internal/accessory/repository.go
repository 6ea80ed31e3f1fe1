package accessory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for accessory persistence.
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByUUID retrieves an accessory by its identifier.
	// Returns ErrNotFound if no such accessory exists.
	GetByUUID(ctx context.Context, uuid string) (*Record, error)

	// List retrieves all persisted accessories.
	List(ctx context.Context) ([]Record, error)

	// Create inserts a new accessory.
	// Returns ErrExists if the UUID or composite id is already persisted.
	Create(ctx context.Context, rec *Record) error

	// Update modifies an existing accessory's name and context.
	// Returns ErrNotFound if the accessory does not exist.
	Update(ctx context.Context, rec *Record) error

	// Delete removes an accessory by UUID.
	// Returns ErrNotFound if the accessory does not exist.
	Delete(ctx context.Context, uuid string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// accessories migration applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `uuid, composite_id, name, category, context, created_at, updated_at`

// GetByUUID retrieves an accessory by its identifier.
func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM accessories WHERE uuid = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, uuid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying accessory by uuid: %w", err)
	}
	return rec, nil
}

// List retrieves all persisted accessories ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM accessories ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying accessories: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning accessory: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accessories: %w", err)
	}
	return records, nil
}

// Create inserts a new accessory.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
		INSERT INTO accessories (uuid, composite_id, name, category, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.UUID, rec.CompositeID, rec.Name, string(rec.Category),
		[]byte(rec.Context), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting accessory: %w", err)
	}
	return nil
}

// Update modifies an existing accessory's name, category, and context.
func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	rec.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accessories
		SET name = ?, category = ?, context = ?, updated_at = ?
		WHERE uuid = ?`

	res, err := r.db.ExecContext(ctx, query,
		rec.Name, string(rec.Category), []byte(rec.Context), rec.UpdatedAt, rec.UUID)
	if err != nil {
		return fmt.Errorf("updating accessory: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an accessory by UUID.
func (r *SQLiteRepository) Delete(ctx context.Context, uuid string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accessories WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("deleting accessory: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var category string
	var contextBlob []byte

	err := s.Scan(&rec.UUID, &rec.CompositeID, &rec.Name, &category,
		&contextBlob, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Category = Category(category)
	if len(contextBlob) > 0 {
		rec.Context = contextBlob
	}
	return &rec, nil
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if rec.UUID == "" {
		return fmt.Errorf("%w: missing uuid", ErrInvalidRecord)
	}
	if rec.CompositeID == "" {
		return fmt.Errorf("%w: missing composite id", ErrInvalidRecord)
	}
	if !rec.Category.Valid() {
		return fmt.Errorf("%w: invalid category %q", ErrInvalidRecord, rec.Category)
	}
	return nil
}

// isUniqueViolation detects SQLite UNIQUE constraint failures without
// depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
