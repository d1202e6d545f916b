package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/pestbot/core/config"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("PESTBOT_TEST_CONFIG", "from-env.yaml")
	tests := []struct {
		name     string
		explicit string
		env      string
		fallback string
		want     string
		wantErr  bool
	}{
		{name: "explicit wins", explicit: "flag.yaml", env: "PESTBOT_TEST_CONFIG", fallback: "config.yaml", want: "flag.yaml"},
		{name: "env", env: "PESTBOT_TEST_CONFIG", fallback: "config.yaml", want: "from-env.yaml"},
		{name: "fallback", env: "PESTBOT_TEST_UNSET", fallback: "config.yaml", want: "config.yaml"},
		{name: "nothing", env: "PESTBOT_TEST_UNSET", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConfigPath(tt.explicit, tt.env, tt.fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("path = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunPassesConfigAndShutsDownLogger(t *testing.T) {
	cfg := &coreconfig.Config{}
	var loaded string
	var served *coreconfig.Config
	shutdown := 0
	err := Run(context.Background(), Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loaded = path
			return cfg, nil
		},
		Serve: func(ctx context.Context, c *coreconfig.Config) error {
			served = c
			return context.Canceled
		},
		ShutdownLogger: func() error { shutdown++; return nil },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loaded != "x.yaml" || served != cfg || shutdown != 1 {
		t.Fatalf("loaded=%q served=%v shutdown=%d", loaded, served == cfg, shutdown)
	}
}

func TestRunLoadError(t *testing.T) {
	wantErr := errors.New("bad yaml")
	err := Run(context.Background(), Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (*coreconfig.Config, error) { return nil, wantErr },
		Serve:      func(context.Context, *coreconfig.Config) error { t.Fatal("served"); return nil },
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
}
