package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"rctgcs/internal/estimate"
)

type TrackRepo struct {
	db *sql.DB
}

func NewTrackRepo(db *sql.DB) *TrackRepo {
	return &TrackRepo{db: db}
}

func (r *TrackRepo) Append(ctx context.Context, p estimate.VehiclePosition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicle_track(lat, lon, alt, heading, fixed_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Lat, p.Lon, p.Alt, p.Heading, timeToUnixMillis(p.Time))
	if err != nil {
		return fmt.Errorf("append track point: %w", err)
	}
	return nil
}

func (r *TrackRepo) List(ctx context.Context) ([]estimate.VehiclePosition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT lat, lon, alt, heading, fixed_at
		FROM vehicle_track
		ORDER BY fixed_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query vehicle track: %w", err)
	}
	defer rows.Close()

	var out []estimate.VehiclePosition
	for rows.Next() {
		var (
			p       estimate.VehiclePosition
			fixedAt int64
		)
		if err := rows.Scan(&p.Lat, &p.Lon, &p.Alt, &p.Heading, &fixedAt); err != nil {
			return nil, fmt.Errorf("scan track point: %w", err)
		}
		p.Time = unixMillisToTime(fixedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicle track: %w", err)
	}
	return out, nil
}
