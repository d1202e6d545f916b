package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	coredatabase "github.com/m3rciful/pestbot/core/database"
)

func sqliteConfig() *coreconfig.Config {
	return &coreconfig.Config{Database: coreconfig.DatabaseConfig{
		Driver: coreconfig.DriverSQLite, Path: ":memory:", MaxConnections: 1,
	}}
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunMigratesAndSeeds(t *testing.T) {
	var seeded []int
	res, err := Run(context.Background(), Options{
		Config:     sqliteConfig(),
		LoggerInit: noLogger,
		Modules: Modules{Seeders: []Seeder{
			SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
				var n int
				if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM technicians"); err != nil {
					return err
				}
				seeded = append(seeded, 1)
				return nil
			}),
			SeederFunc(func(context.Context, *sqlx.DB) error {
				seeded = append(seeded, 2)
				return nil
			}),
		}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer res.DB.Close()
	if len(seeded) != 2 || seeded[0] != 1 || seeded[1] != 2 {
		t.Fatalf("seeders ran %v, want [1 2]", seeded)
	}
}

func TestRunSeederFailureClosesDB(t *testing.T) {
	var db *sqlx.DB
	_, err := Run(context.Background(), Options{
		Config:     sqliteConfig(),
		LoggerInit: noLogger,
		Connect: func(cfg coredatabase.Config, wait time.Duration) (*sqlx.DB, error) {
			var err error
			db, err = coredatabase.Connect(cfg, wait)
			return db, err
		},
		Modules: Modules{Seeders: []Seeder{SeederFunc(func(context.Context, *sqlx.DB) error {
			return errors.New("boom")
		})}},
	})
	if err == nil {
		t.Fatal("expected seeder error")
	}
	if pingErr := db.Ping(); pingErr == nil {
		t.Fatal("connection left open after failure")
	}
}

func TestRunWaitTimeout(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"default", 0, DefaultWaitTimeout},
		{"explicit", time.Second, time.Second},
		{"disabled", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got time.Duration
			wantErr := errors.New("stop")
			_, err := Run(context.Background(), Options{
				Config:      sqliteConfig(),
				LoggerInit:  noLogger,
				WaitTimeout: tt.in,
				Connect: func(_ coredatabase.Config, wait time.Duration) (*sqlx.DB, error) {
					got = wait
					return nil, wantErr
				},
			})
			if !errors.Is(err, wantErr) {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Fatalf("wait = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunNilConfig(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
