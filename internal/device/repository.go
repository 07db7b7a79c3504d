package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id int64) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Update(ctx context.Context, id int64, patch Patch) (*Device, error)
	UpdatePresence(ctx context.Context, id int64, online bool) error
	Delete(ctx context.Context, id int64) error
}

// Patch holds a partial update; nil fields keep their current value.
type Patch struct {
	Name          *string `json:"name"`
	MACAddress    *string `json:"mac_address"`
	IPAddress     *string `json:"ip_address"`
	BroadcastAddr *string `json:"broadcast_addr"`
	Icon          *string `json:"icon"`
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed device repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, mac_address, ip_address, broadcast_addr, icon,
	is_online, last_seen_at, created_at, updated_at`

// Create inserts a new device and fills in the assigned ID.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.BroadcastAddr == "" {
		d.BroadcastAddr = defaultBroadcastAddr
	}

	now := time.Now().UTC().Format(time.RFC3339)
	d.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	d.UpdatedAt = d.CreatedAt

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (name, mac_address, ip_address, broadcast_addr, icon,
		 is_online, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		d.Name, d.MACAddress, nullString(d.IPAddress), d.BroadcastAddr,
		nullString(d.Icon), now, now,
	)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	d.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new device id: %w", err)
	}
	return nil
}

// GetByID retrieves a device by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	return scanDeviceFrom(r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id))
}

// List returns all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceFrom(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// Update applies a partial update and returns the resulting device.
// Omitted fields keep their stored values (COALESCE in SQL).
func (r *SQLiteRepository) Update(ctx context.Context, id int64, patch Patch) (*Device, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET
		 name = COALESCE(?, name),
		 mac_address = COALESCE(?, mac_address),
		 ip_address = COALESCE(?, ip_address),
		 broadcast_addr = COALESCE(?, broadcast_addr),
		 icon = COALESCE(?, icon),
		 updated_at = ?
		 WHERE id = ?`,
		patch.Name, patch.MACAddress, patch.IPAddress,
		patch.BroadcastAddr, patch.Icon,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return nil, ErrDeviceNotFound
	}

	return r.GetByID(ctx, id)
}

// UpdatePresence records the outcome of a presence probe. Coming
// online stamps last_seen_at.
func (r *SQLiteRepository) UpdatePresence(ctx context.Context, id int64, online bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var err error
	if online {
		_, err = r.db.ExecContext(ctx,
			"UPDATE devices SET is_online = 1, last_seen_at = ?, updated_at = ? WHERE id = ?",
			now, now, id)
	} else {
		_, err = r.db.ExecContext(ctx,
			"UPDATE devices SET is_online = 0, updated_at = ? WHERE id = ?",
			now, id)
	}
	if err != nil {
		return fmt.Errorf("updating device presence: %w", err)
	}
	return nil
}

// Delete removes a device.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner is an interface over sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanDeviceFrom(s scanner) (*Device, error) {
	var d Device
	var ip, icon, lastSeen sql.NullString
	var isOnline int
	var createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.Name, &d.MACAddress, &ip, &d.BroadcastAddr,
		&icon, &isOnline, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.IsOnline = isOnline != 0
	if ip.Valid {
		d.IPAddress = ip.String
	}
	if icon.Valid {
		d.Icon = icon.String
	}
	if lastSeen.Valid {
		t, _ := time.Parse(time.RFC3339, lastSeen.String) //nolint:errcheck // format is controlled
		d.LastSeenAt = &t
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
