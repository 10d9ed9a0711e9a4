package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"rctgcs/internal/estimate"
)

type PingRepo struct {
	db *sql.DB
}

func NewPingRepo(db *sql.DB) *PingRepo {
	return &PingRepo{db: db}
}

func (r *PingRepo) Insert(ctx context.Context, p estimate.Ping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pings(freq_hz, lat, lon, alt, power, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, int64(p.Freq), p.Lat, p.Lon, p.Alt, p.Power, timeToUnixMillis(p.Time))
	if err != nil {
		return fmt.Errorf("insert ping: %w", err)
	}
	return nil
}

func (r *PingRepo) ListByFrequency(ctx context.Context, freqHz uint32) ([]estimate.Ping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT freq_hz, lat, lon, alt, power, received_at
		FROM pings
		WHERE freq_hz = ?
		ORDER BY received_at ASC, id ASC
	`, int64(freqHz))
	if err != nil {
		return nil, fmt.Errorf("query pings: %w", err)
	}
	defer rows.Close()

	var out []estimate.Ping
	for rows.Next() {
		var (
			freq       int64
			p          estimate.Ping
			receivedAt int64
		)
		if err := rows.Scan(&freq, &p.Lat, &p.Lon, &p.Alt, &p.Power, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		p.Freq = uint32(freq)
		p.Time = unixMillisToTime(receivedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pings: %w", err)
	}
	return out, nil
}

func (r *PingRepo) Frequencies(ctx context.Context) ([]uint32, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT freq_hz FROM pings ORDER BY freq_hz ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query ping frequencies: %w", err)
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var freq int64
		if err := rows.Scan(&freq); err != nil {
			return nil, fmt.Errorf("scan frequency: %w", err)
		}
		out = append(out, uint32(freq))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frequencies: %w", err)
	}
	return out, nil
}
