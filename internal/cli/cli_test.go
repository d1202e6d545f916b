package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3rciful/pestbot/core/bootstrap"
	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/internal/app"
	"github.com/m3rciful/pestbot/internal/intake"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	yaml := `client_bot:
  token: "111:client"
technician_bot:
  token: "222:technician"
database:
  driver: sqlite3
  path: ` + filepath.Join(dir, "pestbot.db") + `
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func quiet(t *testing.T) {
	t.Helper()
	prevBoot, prevShutdown := bootstrapOptions, shutdownLogger
	bootstrapOptions = bootstrap.Options{LoggerInit: func(*coreconfig.Config) error { return nil }}
	shutdownLogger = func() error { return nil }
	t.Cleanup(func() {
		bootstrapOptions, shutdownLogger = prevBoot, prevShutdown
	})
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTechnicianRegisterAndList(t *testing.T) {
	quiet(t)
	cfg := writeConfig(t)

	out, err := run(t, cfg, "technician", "register", "--name", "Oleg", "--contact", "@oleg", "--credential", "oleg-key")
	if err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Registered technician #1: Oleg (@oleg)") || !strings.Contains(out, "/start oleg-key") {
		t.Fatalf("register output = %q", out)
	}

	if out, err := run(t, cfg, "technician", "register", "--name", "Other", "--contact", "@oleg"); err == nil {
		t.Fatalf("duplicate contact accepted: %q", out)
	}

	out, err = run(t, cfg, "tech", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "CONTACT") || !strings.Contains(out, "@oleg") || strings.Contains(out, "oleg-key") {
		t.Fatalf("list output = %q", out)
	}
}

func TestOrdersCommands(t *testing.T) {
	quiet(t)
	cfgPath := writeConfig(t)

	if out, err := run(t, cfgPath, "orders", "list"); err != nil || !strings.Contains(out, "No orders found") {
		t.Fatalf("empty list = %q, %v", out, err)
	}
	if _, err := run(t, cfgPath, "technician", "register", "--name", "Oleg", "--contact", "@oleg"); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := app.Open(context.Background(), cfg, app.OpenOptions{Bootstrap: bootstrapOptions})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	res, err := a.Orders.Submit(context.Background(), intake.Submission{
		Name: "Ivan", ObjectType: "office", InsectQuantity: "50_200", Phone: "79001234567", Address: "Lenina 5",
	}, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	code := res.Order.Code
	if res.Order.TechnicianID == nil {
		t.Fatal("order not assigned")
	}
	if _, err := a.Orders.Accept(context.Background(), code, *res.Order.TechnicianID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_ = a.Close()

	out, err := run(t, cfgPath, "orders", "list", "--status", "in_progress")
	if err != nil || !strings.Contains(out, code) || !strings.Contains(out, "Oleg") {
		t.Fatalf("list = %q, %v", out, err)
	}
	if _, err := run(t, cfgPath, "orders", "list", "--status", "bogus"); err == nil {
		t.Fatal("unknown status accepted")
	}

	out, err = run(t, cfgPath, "orders", "complete", strings.ToLower(code), "--final-price", "1500", "--no-notify")
	if err != nil {
		t.Fatalf("complete: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Order "+code+" completed, final price 1500") {
		t.Fatalf("complete output = %q", out)
	}

	out, err = run(t, cfgPath, "orders", "show", code)
	if err != nil || !strings.Contains(out, "(done)") || !strings.Contains(out, "Office") || !strings.Contains(out, "Final:      1500") {
		t.Fatalf("show = %q, %v", out, err)
	}

	out, err = run(t, cfgPath, "orders", "stats")
	if err != nil || !strings.Contains(out, "IN PROGRESS") {
		t.Fatalf("stats = %q, %v", out, err)
	}
}

func TestVersion(t *testing.T) {
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "pestbot dev") {
		t.Fatalf("version = %q", out.String())
	}
}
