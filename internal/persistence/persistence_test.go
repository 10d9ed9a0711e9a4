package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"rctgcs/internal/estimate"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "gcs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gcs.db")
	ctx := context.Background()
	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("user_version = %d, want %d", version, len(migrations))
	}
}

func TestPingRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewPingRepo(db)
	ctx := context.Background()

	base := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	pings := []estimate.Ping{
		{Lat: 32.884, Lon: -117.235, Alt: 30, Power: -42.5, Freq: 173_500_000, Time: base},
		{Lat: 32.885, Lon: -117.236, Alt: 31, Power: -44.0, Freq: 173_500_000, Time: base.Add(2 * time.Second)},
		{Lat: 32.886, Lon: -117.237, Alt: 32, Power: -50.0, Freq: 173_900_000, Time: base.Add(4 * time.Second)},
	}
	for _, p := range pings {
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := repo.ListByFrequency(ctx, 173_500_000)
	if err != nil {
		t.Fatalf("ListByFrequency: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d pings, want 2", len(got))
	}
	if got[0].Power != -42.5 || got[1].Power != -44.0 {
		t.Fatalf("pings out of order: %+v", got)
	}
	if !got[0].Time.Equal(base) {
		t.Fatalf("time round trip: got %v, want %v", got[0].Time, base)
	}

	freqs, err := repo.Frequencies(ctx)
	if err != nil {
		t.Fatalf("Frequencies: %v", err)
	}
	if len(freqs) != 2 || freqs[0] != 173_500_000 || freqs[1] != 173_900_000 {
		t.Fatalf("Frequencies = %v", freqs)
	}
}

func TestTrackRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewTrackRepo(db)
	ctx := context.Background()

	base := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		p := estimate.VehiclePosition{
			Lat:     32.88 + float64(i)*0.001,
			Lon:     -117.23,
			Alt:     40,
			Heading: float64(90 * i),
			Time:    base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Append(ctx, p); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	track, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(track) != 3 {
		t.Fatalf("got %d track points, want 3", len(track))
	}
	if track[2].Heading != 180 {
		t.Fatalf("last heading = %v, want 180", track[2].Heading)
	}
}
