package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/m3rciful/pestbot/core/bootstrap"
	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/telegram/state"
	"github.com/m3rciful/pestbot/internal/intake"
)

func testConfig() *coreconfig.Config {
	return &coreconfig.Config{
		Database: coreconfig.DatabaseConfig{Driver: coreconfig.DriverSQLite, Path: ":memory:", MaxConnections: 1},
		Seed: coreconfig.SeedConfig{Technicians: []coreconfig.SeedTechnician{
			{Name: "Oleg", Contact: "@oleg", Credential: "oleg-key"},
			{Name: "Anna", Contact: "@anna", Credential: "anna-key"},
		}},
	}
}

func quietBootstrap() bootstrap.Options {
	return bootstrap.Options{LoggerInit: func(*coreconfig.Config) error { return nil }}
}

func TestOpenSeedsTechnicians(t *testing.T) {
	a, err := Open(context.Background(), testConfig(), OpenOptions{Bootstrap: quietBootstrap()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	techs, err := a.Technicians.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(techs) != 2 || techs[0].Contact != "@oleg" || techs[1].Contact != "@anna" {
		t.Fatalf("technicians = %+v", techs)
	}
	if _, err := a.Technicians.LookupByCredential(context.Background(), "anna-key"); err != nil {
		t.Fatalf("lookup seeded credential: %v", err)
	}
}

func TestOpenSessionsMemory(t *testing.T) {
	s, err := OpenSessions(context.Background(), coreconfig.SessionConfig{Backend: coreconfig.SessionMemory, IdleTimeout: time.Minute})
	if err != nil {
		t.Fatalf("OpenSessions: %v", err)
	}
	defer s.Close()
	if len(s.Sweepers) != 2 {
		t.Fatalf("sweepers = %d, want 2", len(s.Sweepers))
	}
}

func TestOpenSessionsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenSessions(context.Background(), coreconfig.SessionConfig{
		Backend: coreconfig.SessionRedis, RedisAddr: mr.Addr(), IdleTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("OpenSessions: %v", err)
	}
	defer s.Close()
	if len(s.Sweepers) != 0 {
		t.Fatalf("redis backend must not need sweepers")
	}

	ctx := context.Background()
	key := state.Key{Chat: 7, Role: state.RoleClient}
	if err := s.Forms.Put(ctx, key, &intake.Form{Step: intake.AwaitingName}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Forms.Get(ctx, key)
	if err != nil || !ok || got.Step != intake.AwaitingName {
		t.Fatalf("Get = %+v, %v, %v", got, ok, err)
	}
	if ttl := mr.TTL(redisPrefix + key.String()); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}
}

func TestOpenSessionsRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := OpenSessions(context.Background(), coreconfig.SessionConfig{
		Backend: coreconfig.SessionRedis, RedisAddr: addr, IdleTimeout: time.Minute,
	}); err == nil {
		t.Fatal("expected ping failure")
	}
}
