package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/database"
	"github.com/m3rciful/pestbot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := database.Config{Driver: coreconfig.DriverSQLite, Path: ":memory:", MaxConnections: 1}
	db, err := database.Connect(cfg, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.RunMigrations(cfg, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db, cfg.Driver)
}

func seedTechnician(t *testing.T, s *Store, n int) domain.Technician {
	t.Helper()
	tech := domain.Technician{
		Name:       fmt.Sprintf("Tech %d", n),
		Contact:    fmt.Sprintf("@tech%d", n),
		Credential: fmt.Sprintf("cred-%d", n),
	}
	if err := s.CreateTechnician(context.Background(), &tech); err != nil {
		t.Fatalf("create technician: %v", err)
	}
	return tech
}

func seedClient(t *testing.T, s *Store) domain.Client {
	t.Helper()
	c := domain.Client{Name: "Ivan", Phone: "79001234567", Address: "Lenina 5"}
	if err := s.CreateClient(context.Background(), &c); err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

func newOrder(clientID int64) *domain.Order {
	return &domain.Order{ClientID: clientID, ObjectType: "apartment", InsectQuantity: "50_200"}
}

func TestCreateTechnicianDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTechnician(t, s, 1)

	dupCred := domain.Technician{Name: "X", Contact: "@other", Credential: "cred-1"}
	if err := s.CreateTechnician(ctx, &dupCred); !errors.Is(err, domain.ErrDuplicateCredential) {
		t.Fatalf("expected duplicate credential, got %v", err)
	}
	dupContact := domain.Technician{Name: "X", Contact: "@tech1", Credential: "fresh"}
	if err := s.CreateTechnician(ctx, &dupContact); !errors.Is(err, domain.ErrDuplicateContact) {
		t.Fatalf("expected duplicate contact, got %v", err)
	}
}

func TestTechnicianLookupAndBind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedTechnician(t, s, 1)
	b := seedTechnician(t, s, 2)

	got, err := s.TechnicianByCredential(ctx, "cred-2")
	if err != nil || got.ID != b.ID {
		t.Fatalf("lookup = %+v, %v", got, err)
	}
	if _, err := s.TechnicianByCredential(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := s.BindEndpoint(ctx, a.ID, 500); err != nil {
		t.Fatalf("bind: %v", err)
	}
	// Same chat rebinds to b and leaves a unbound.
	if err := s.BindEndpoint(ctx, b.ID, 500); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	bound, err := s.TechnicianByChat(ctx, 500)
	if err != nil || bound.ID != b.ID {
		t.Fatalf("by chat = %+v, %v", bound, err)
	}
	a2, _ := s.TechnicianByID(ctx, a.ID)
	if a2.Bound() {
		t.Fatal("previous holder should be unbound")
	}
	if err := s.BindEndpoint(ctx, 999, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignmentRoundRobinInRegistrationOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var want []int64
	for i := 1; i <= 4; i++ {
		want = append(want, seedTechnician(t, s, i).ID)
	}
	client := seedClient(t, s)

	for i, id := range want {
		tech, err := s.CreateAssignedOrder(ctx, newOrder(client.ID))
		if err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
		if tech.ID != id {
			t.Fatalf("order %d assigned to %d, want %d", i, tech.ID, id)
		}
	}
}

func TestCreateAssignedOrderWithoutTechnicians(t *testing.T) {
	s := newTestStore(t)
	client := seedClient(t, s)
	_, err := s.CreateAssignedOrder(context.Background(), newOrder(client.ID))
	if !errors.Is(err, domain.ErrNoTechnicianAvailable) {
		t.Fatalf("expected no technician, got %v", err)
	}
	orders, _ := s.ListOrders(context.Background(), domain.OrderFilter{})
	if len(orders) != 0 {
		t.Fatalf("no order should be written, got %d", len(orders))
	}
}

func TestCurrentLoadCountsOnlyActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tech := seedTechnician(t, s, 1)
	client := seedClient(t, s)

	codes := make([]string, 4)
	for i := range codes {
		o := newOrder(client.ID)
		if _, err := s.CreateAssignedOrder(ctx, o); err != nil {
			t.Fatalf("order: %v", err)
		}
		codes[i] = o.Code
	}
	if err := s.Decline(ctx, codes[0], tech.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := s.Accept(ctx, codes[1], tech.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Accept(ctx, codes[2], tech.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Complete(ctx, codes[2], 0, 2000); err != nil {
		t.Fatalf("complete: %v", err)
	}

	load, err := s.CurrentLoad(ctx, tech.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if load != 2 {
		t.Fatalf("load = %d, want 2 (one new, one in progress)", load)
	}
	all, _ := s.Loads(ctx)
	if all[tech.ID] != 2 {
		t.Fatalf("Loads = %v", all)
	}
}

func TestTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tech := seedTechnician(t, s, 1)
	other := seedTechnician(t, s, 2)
	client := seedClient(t, s)

	o := newOrder(client.ID)
	if _, err := s.CreateAssignedOrder(ctx, o); err != nil {
		t.Fatalf("order: %v", err)
	}

	if err := s.SavePricing(ctx, o.Code, tech.ID, domain.Pricing{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pricing before accept: %v", err)
	}
	if err := s.Accept(ctx, o.Code, other.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign accept: %v", err)
	}
	if err := s.Accept(ctx, o.Code, tech.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Decline(ctx, o.Code, tech.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("decline after accept: %v", err)
	}
	p := domain.Pricing{PoisonType: "fipronil", InsectType: "ants", Area: 40.5, EstimatedPrice: 1200}
	if err := s.SavePricing(ctx, o.Code, tech.ID, p); err != nil {
		t.Fatalf("pricing: %v", err)
	}
	if err := s.Complete(ctx, o.Code, tech.ID, 1300); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.Complete(ctx, o.Code, 0, 1300); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double complete: %v", err)
	}
	if err := s.Accept(ctx, "missing", tech.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}

	v, err := s.OrderByCode(ctx, o.Code)
	if err != nil {
		t.Fatalf("by code: %v", err)
	}
	if v.Status != domain.StatusDone || v.ClientName != "Ivan" {
		t.Fatalf("view = %+v", v)
	}
	if v.PoisonType == nil || *v.PoisonType != "fipronil" || v.Area == nil || *v.Area != 40.5 {
		t.Fatalf("pricing not stored: %+v", v.Order)
	}
	if v.FinalPrice == nil || *v.FinalPrice != 1300 {
		t.Fatalf("final price = %v", v.FinalPrice)
	}
	if v.TechnicianName == nil || *v.TechnicianName != tech.Name {
		t.Fatalf("technician name = %v", v.TechnicianName)
	}
}

func TestListOrdersAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedTechnician(t, s, 1)
	b := seedTechnician(t, s, 2)
	seedTechnician(t, s, 3)
	client := seedClient(t, s)

	// a, b, c, a
	var orders []*domain.Order
	for i := 0; i < 4; i++ {
		o := newOrder(client.ID)
		if _, err := s.CreateAssignedOrder(ctx, o); err != nil {
			t.Fatalf("order: %v", err)
		}
		orders = append(orders, o)
	}
	if err := s.Accept(ctx, orders[0].Code, a.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Accept(ctx, orders[3].Code, a.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Complete(ctx, orders[3].Code, a.ID, 900); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.Decline(ctx, orders[1].Code, b.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	mine, err := s.ListOrders(ctx, domain.OrderFilter{TechnicianID: a.ID})
	if err != nil || len(mine) != 2 {
		t.Fatalf("orders of a = %d, %v", len(mine), err)
	}
	declined, _ := s.ListOrders(ctx, domain.OrderFilter{Status: domain.StatusDeclined})
	if len(declined) != 1 || declined[0].Code != orders[1].Code {
		t.Fatalf("declined = %+v", declined)
	}
	all, _ := s.ListOrders(ctx, domain.OrderFilter{})
	if len(all) != 4 {
		t.Fatalf("all = %d", len(all))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("stats rows = %d", len(stats))
	}
	if got := stats[0]; got.Total != 2 || got.Done != 1 || got.InProgress != 1 {
		t.Fatalf("stats a = %+v", got)
	}
	if got := stats[1]; got.Total != 1 || got.Done != 0 || got.InProgress != 0 {
		t.Fatalf("stats b = %+v", got)
	}
}

func TestOrderCodeCollisionRetries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTechnician(t, s, 1)
	client := seedClient(t, s)

	codes := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	var mu sync.Mutex
	s.newCode = func() string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		codes = codes[1:]
		return c
	}

	first, second := newOrder(client.ID), newOrder(client.ID)
	if _, err := s.CreateAssignedOrder(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := s.CreateAssignedOrder(ctx, second); err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Code != "aaaaaaaa" || second.Code != "bbbbbbbb" {
		t.Fatalf("codes = %s, %s", first.Code, second.Code)
	}
}

func TestConcurrentAssignmentSpreadsLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		seedTechnician(t, s, i)
	}
	client := seedClient(t, s)

	var wg sync.WaitGroup
	errs := make(chan error, 9)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateAssignedOrder(ctx, newOrder(client.ID)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("assign: %v", err)
	}

	loads, err := s.Loads(ctx)
	if err != nil {
		t.Fatalf("loads: %v", err)
	}
	for id, n := range loads {
		if n != 3 {
			t.Fatalf("technician %d has %d orders, want 3", id, n)
		}
	}
}
