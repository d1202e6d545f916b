package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	coreconfig "github.com/m3rciful/pestbot/core/config"
	"github.com/m3rciful/pestbot/core/database"
	"github.com/m3rciful/pestbot/internal/domain"
	"github.com/m3rciful/pestbot/internal/intake"
	"github.com/m3rciful/pestbot/internal/storage"
)

// flakyStore counts client writes and can fail the next order write.
type flakyStore struct {
	*storage.Store
	clientWrites   int
	failOrderWrite bool
}

func (f *flakyStore) CreateClient(ctx context.Context, c *domain.Client) error {
	f.clientWrites++
	return f.Store.CreateClient(ctx, c)
}

func (f *flakyStore) CreateAssignedOrder(ctx context.Context, o *domain.Order) (domain.Technician, error) {
	if f.failOrderWrite {
		f.failOrderWrite = false
		return domain.Technician{}, domain.WriteFailure("create order", errors.New("disk full"))
	}
	return f.Store.CreateAssignedOrder(ctx, o)
}

type sent struct {
	kind  string
	chat  int64
	order string
}

type fakeNotifier struct {
	sent []sent
	fail error
}

func (n *fakeNotifier) OrderAssigned(_ context.Context, tech domain.Technician, o domain.OrderView) error {
	if n.fail != nil {
		return n.fail
	}
	if !tech.Bound() {
		return domain.ErrEndpointUnbound
	}
	n.sent = append(n.sent, sent{"assigned", *tech.ChatID, o.Code})
	return nil
}

func (n *fakeNotifier) StatusChanged(_ context.Context, o domain.OrderView) error {
	if o.ClientChatID == nil {
		return domain.ErrEndpointUnbound
	}
	n.sent = append(n.sent, sent{string(o.Status), *o.ClientChatID, o.Code})
	return nil
}

func (n *fakeNotifier) OrderDeclined(_ context.Context, o domain.OrderView) error {
	n.sent = append(n.sent, sent{"declined", 0, o.Code})
	return nil
}

type fixture struct {
	store  *flakyStore
	orders *Orders
	techs  *Technicians
	notify *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
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
	fs := &flakyStore{Store: storage.New(db, cfg.Driver)}
	n := &fakeNotifier{}
	return &fixture{store: fs, orders: NewOrders(fs, n), techs: NewTechnicians(fs), notify: n}
}

func (f *fixture) register(t *testing.T, i int, chatID int64) domain.Technician {
	t.Helper()
	ctx := context.Background()
	cred := fmt.Sprintf("credential-%d", i)
	tech, err := f.techs.Register(ctx, fmt.Sprintf("Tech %d", i), fmt.Sprintf("@t%d", i), cred)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if chatID != 0 {
		if tech, err = f.techs.BindEndpoint(ctx, cred, chatID); err != nil {
			t.Fatalf("bind: %v", err)
		}
	}
	return tech
}

func ivan() intake.Submission {
	return intake.Submission{
		Name:           "Ivan",
		ObjectType:     "apartment",
		InsectQuantity: "50_200",
		HasExperience:  false,
		Phone:          "79001234567",
		Address:        "Lenina 5",
	}
}

func TestSubmitEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, 1, 1001)
	b := f.register(t, 2, 1002)

	// a already carries one active order, so b is least loaded.
	if _, err := f.orders.Submit(ctx, ivan(), 0); err != nil {
		t.Fatalf("warm-up submit: %v", err)
	}
	f.notify.sent = nil

	res, err := f.orders.Submit(ctx, ivan(), 555)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Technician.ID != b.ID {
		t.Fatalf("assigned to %d, want %d (a=%d)", res.Technician.ID, b.ID, a.ID)
	}
	if res.Order.Status != domain.StatusNew || res.Order.Code == "" {
		t.Fatalf("order = %+v", res.Order.Order)
	}
	if !res.Notified || len(f.notify.sent) != 1 || f.notify.sent[0].chat != 1002 {
		t.Fatalf("notifications = %+v", f.notify.sent)
	}

	stored, err := f.orders.Order(ctx, res.Order.Code)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if stored.ClientPhone != "79001234567" || stored.ObjectType != "apartment" || stored.InsectQuantity != "50_200" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestSubmitUnboundTechnicianKeepsOrderNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1, 0)

	res, err := f.orders.Submit(ctx, ivan(), 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Notified || len(f.notify.sent) != 0 {
		t.Fatalf("nothing should be sent, got %+v", f.notify.sent)
	}
	stored, _ := f.orders.Order(ctx, res.Order.Code)
	if stored.Status != domain.StatusNew {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestSubmitRetryReusesClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1, 1001)

	f.store.failOrderWrite = true
	sub := ivan()
	res, err := f.orders.Submit(ctx, sub, 0)
	if !errors.Is(err, domain.ErrStoreWrite) {
		t.Fatalf("expected store write failure, got %v", err)
	}
	if res.ClientID == 0 {
		t.Fatal("client id must be reported after partial failure")
	}

	sub.ClientID = res.ClientID
	res2, err := f.orders.Submit(ctx, sub, 0)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.store.clientWrites != 1 {
		t.Fatalf("client written %d times, want 1", f.store.clientWrites)
	}
	if res2.ClientID != res.ClientID || res2.Order.ClientID != res.ClientID {
		t.Fatalf("retry used client %d, want %d", res2.Order.ClientID, res.ClientID)
	}
	orders, _ := f.orders.List(ctx, domain.OrderFilter{})
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
}

func TestSubmitWithoutTechnicians(t *testing.T) {
	f := newFixture(t)
	res, err := f.orders.Submit(context.Background(), ivan(), 0)
	if !errors.Is(err, domain.ErrNoTechnicianAvailable) {
		t.Fatalf("expected no technician, got %v", err)
	}
	if res.ClientID == 0 {
		t.Fatal("client should be kept for the retry")
	}
}

func TestDeclineDoesNotReassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, 1, 1001)
	f.register(t, 2, 1002)

	res, err := f.orders.Submit(ctx, ivan(), 555)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.notify.sent = nil

	v, err := f.orders.Decline(ctx, res.Order.Code, a.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if v.Status != domain.StatusDeclined || v.TechnicianID == nil || *v.TechnicianID != a.ID {
		t.Fatalf("declined order = %+v", v.Order)
	}
	for _, s := range f.notify.sent {
		if s.kind == "assigned" {
			t.Fatalf("order was reassigned: %+v", f.notify.sent)
		}
	}
	if _, err := f.orders.Accept(ctx, res.Order.Code, a.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("accept after decline: %v", err)
	}
}

func TestAcceptPriceCompleteNotifiesClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, 1, 1001)

	res, err := f.orders.Submit(ctx, ivan(), 555)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	code := res.Order.Code
	f.notify.sent = nil

	if _, err := f.orders.Accept(ctx, code, a.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	p := domain.Pricing{PoisonType: "fipronil", InsectType: "bedbugs", Area: 30, EstimatedPrice: 900}
	if err := f.orders.SavePricing(ctx, code, a.ID, p); err != nil {
		t.Fatalf("pricing: %v", err)
	}
	if _, err := f.orders.Complete(ctx, code, 0, 0); !domain.IsValidation(err) {
		t.Fatalf("zero final price: %v", err)
	}
	done, err := f.orders.Complete(ctx, code, 0, 950)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.StatusDone {
		t.Fatalf("status = %s", done.Status)
	}

	want := []sent{{"in_progress", 555, code}, {"done", 555, code}}
	if len(f.notify.sent) != len(want) {
		t.Fatalf("sent = %+v", f.notify.sent)
	}
	for i := range want {
		if f.notify.sent[i] != want[i] {
			t.Fatalf("sent[%d] = %+v, want %+v", i, f.notify.sent[i], want[i])
		}
	}

	stats, _ := f.orders.Stats(ctx)
	if len(stats) != 1 || stats[0].Done != 1 || stats[0].Total != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orders.List(context.Background(), domain.OrderFilter{Status: "lost"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.techs.Register(ctx, "", "@x", ""); !domain.IsValidation(err) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := f.techs.Register(ctx, "X", "@x", "abc"); !domain.IsValidation(err) {
		t.Fatalf("short credential: %v", err)
	}
	tech, err := f.techs.Register(ctx, "X", "@x", "")
	if err != nil || len(tech.Credential) != 32 {
		t.Fatalf("generated credential = %q, %v", tech.Credential, err)
	}
	if _, err := f.techs.Register(ctx, "Y", "@y", tech.Credential); !errors.Is(err, domain.ErrDuplicateCredential) {
		t.Fatalf("duplicate credential: %v", err)
	}
}

func TestBindEndpointUnknownCredential(t *testing.T) {
	f := newFixture(t)
	if _, err := f.techs.BindEndpoint(context.Background(), "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeds := []SeedTechnician{
		{Name: "Anna", Contact: "@anna", Credential: "anna-token"},
		{Name: "Boris", Contact: "@boris", Credential: "boris-token"},
	}
	n, err := f.techs.Seed(ctx, seeds)
	if err != nil || n != 2 {
		t.Fatalf("first seed = %d, %v", n, err)
	}
	n, err = f.techs.Seed(ctx, seeds)
	if err != nil || n != 0 {
		t.Fatalf("second seed = %d, %v", n, err)
	}
	load, err := f.techs.CurrentLoad(ctx, 1)
	if err != nil || load != 0 {
		t.Fatalf("load = %d, %v", load, err)
	}
}
