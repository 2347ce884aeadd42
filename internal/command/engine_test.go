package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/catalog"
	"github.com/vladislavdragonenkov/backoffice/internal/clock"
	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
)

const (
	testTenant   = "tenant-1"
	testLocation = "location-1"
	testUser     = "cashier-7"
)

var testNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func testRequestContext() domain.RequestContext {
	return domain.RequestContext{
		TenantID:   testTenant,
		LocationID: testLocation,
		UserID:     testUser,
	}
}

func testCatalog() *catalog.StaticReader {
	return catalog.NewStaticReader(
		domain.CatalogItem{
			ID:             "item-espresso",
			Name:           "Espresso",
			SKU:            "SKU-ESP",
			ItemType:       "beverage",
			UnitPriceMinor: 500,
			TaxMode:        domain.TaxModeExclusive,
			TaxRates:       []domain.TaxRate{{Name: "VAT", RateBps: 1000}},
		},
		domain.CatalogItem{
			ID:             "item-water",
			Name:           "Still Water",
			SKU:            "SKU-H2O",
			ItemType:       "beverage",
			UnitPriceMinor: 200,
		},
		domain.CatalogItem{
			ID:             "item-combo",
			Name:           "Breakfast Combo",
			SKU:            "SKU-CMB",
			ItemType:       "package",
			UnitPriceMinor: 1001,
			TaxMode:        domain.TaxModeInclusive,
			TaxRates:       []domain.TaxRate{{Name: "VAT", RateBps: 2000}},
			Components: []domain.PackageComponent{
				{ItemID: "item-coffee", Name: "Coffee", Weight: 2},
				{ItemID: "item-sandwich", Name: "Sandwich", Weight: 1},
			},
		},
	)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAuditor) Submit(entry domain.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAuditor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *recordingAuditor) {
	t.Helper()
	store := memory.NewStore()
	auditor := &recordingAuditor{}
	engine := NewEngine(store, testCatalog(),
		WithClock(clock.NewFixed(testNow)),
		WithAuditor(auditor),
	)
	return engine, store, auditor
}

func openTestOrder(t *testing.T, engine *Engine) domain.Order {
	t.Helper()
	result, err := engine.OpenOrder(context.Background(), testRequestContext(), OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder: %v", err)
	}
	return result.Order
}

func TestOpenOrder(t *testing.T) {
	engine, store, auditor := newTestEngine(t)

	result, err := engine.OpenOrder(context.Background(), testRequestContext(), OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder: %v", err)
	}

	order := result.Order
	if order.ID == "" {
		t.Fatal("expected generated order id")
	}
	if order.Status != domain.OrderStatusOpen {
		t.Fatalf("expected status open, got %q", order.Status)
	}
	if order.Version != 1 {
		t.Fatalf("expected version 1, got %d", order.Version)
	}
	if order.BusinessDate != "2026-03-11" {
		t.Fatalf("expected business date from clock, got %q", order.BusinessDate)
	}
	if order.TotalMinor != 0 || order.SubtotalMinor != 0 {
		t.Fatalf("expected empty totals, got subtotal=%d total=%d", order.SubtotalMinor, order.TotalMinor)
	}

	stored, ok := store.GetOrder(testTenant, order.ID)
	if !ok {
		t.Fatal("order was not persisted")
	}
	if stored.Version != 1 {
		t.Fatalf("persisted version = %d, want 1", stored.Version)
	}

	events, err := store.PullPending(10)
	if err != nil {
		t.Fatalf("PullPending: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != EventTypeOrderOpened {
		t.Fatalf("event type = %q, want %q", events[0].EventType, EventTypeOrderOpened)
	}
	if auditor.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", auditor.count())
	}
}

func TestOpenOrderRequiresLocation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	rc := domain.RequestContext{TenantID: testTenant}
	_, err := engine.OpenOrder(context.Background(), rc, OpenOrderInput{})
	if !domain.IsPreconditionMissing(err) {
		t.Fatalf("expected precondition_missing, got %v", err)
	}

	rc = domain.RequestContext{LocationID: testLocation}
	_, err = engine.OpenOrder(context.Background(), rc, OpenOrderInput{})
	if !domain.IsPreconditionMissing(err) {
		t.Fatalf("expected precondition_missing without tenant, got %v", err)
	}
}

func TestAddLineItemExclusiveTax(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)

	result, err := engine.AddLineItem(context.Background(), testRequestContext(), AddLineItemInput{
		OrderID: order.ID,
		ItemID:  "item-espresso",
		Qty:     2,
	})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	line := result.Line
	if line.LineSubtotalMinor != 1000 {
		t.Fatalf("line subtotal = %d, want 1000", line.LineSubtotalMinor)
	}
	if line.LineTaxMinor != 100 {
		t.Fatalf("line tax = %d, want 100", line.LineTaxMinor)
	}
	if line.LineTotalMinor != 1100 {
		t.Fatalf("line total = %d, want 1100", line.LineTotalMinor)
	}
	if line.SortOrder != 1 {
		t.Fatalf("sort order = %d, want 1", line.SortOrder)
	}

	updated := result.Order
	if updated.Version != order.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, order.Version+1)
	}
	if updated.SubtotalMinor != 1000 || updated.TaxMinor != 100 || updated.TotalMinor != 1100 {
		t.Fatalf("order totals = %d/%d/%d, want 1000/100/1100",
			updated.SubtotalMinor, updated.TaxMinor, updated.TotalMinor)
	}

	if got := store.CountTaxLines(testTenant, order.ID); got != 1 {
		t.Fatalf("tax line count = %d, want 1", got)
	}
}

func TestAddLineItemPackageSnapshot(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)

	result, err := engine.AddLineItem(context.Background(), testRequestContext(), AddLineItemInput{
		OrderID: order.ID,
		ItemID:  "item-combo",
		Qty:     1,
	})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	if len(result.Line.ComponentsJSON) == 0 {
		t.Fatal("expected package components snapshot on the line")
	}

	var components []struct {
		ItemID      string `json:"item_id"`
		AmountMinor int64  `json:"amount_minor"`
	}
	if err := json.Unmarshal(result.Line.ComponentsJSON, &components); err != nil {
		t.Fatalf("unmarshal components: %v", err)
	}
	if len(components) != 2 {
		t.Fatalf("component count = %d, want 2", len(components))
	}
	var sum int64
	for _, component := range components {
		sum += component.AmountMinor
	}
	if sum != 1001 {
		t.Fatalf("allocated sum = %d, want full package price 1001", sum)
	}

	// Inclusive: налог выделен из цены, итог позиции равен брутто.
	if result.Line.LineTotalMinor != 1001 {
		t.Fatalf("line total = %d, want 1001", result.Line.LineTotalMinor)
	}
	if result.Line.LineSubtotalMinor+result.Line.LineTaxMinor != 1001 {
		t.Fatalf("subtotal+tax = %d, want 1001",
			result.Line.LineSubtotalMinor+result.Line.LineTaxMinor)
	}
}

func TestAddLineItemValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	cases := []struct {
		name string
		in   AddLineItemInput
		want func(error) bool
	}{
		{"missing order id", AddLineItemInput{ItemID: "item-water", Qty: 1}, domain.IsValidationFailed},
		{"missing item id", AddLineItemInput{OrderID: order.ID, Qty: 1}, domain.IsValidationFailed},
		{"zero qty", AddLineItemInput{OrderID: order.ID, ItemID: "item-water"}, domain.IsValidationFailed},
		{"negative qty", AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: -1}, domain.IsValidationFailed},
		{"unknown item", AddLineItemInput{OrderID: order.ID, ItemID: "item-ghost", Qty: 1}, domain.IsNotFound},
		{"unknown order", AddLineItemInput{OrderID: "missing", ItemID: "item-water", Qty: 1}, domain.IsNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.AddLineItem(ctx, rc, tc.in)
			if err == nil || !tc.want(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRemoveLineItemRecalculatesTotals(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	added, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 2})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	removed, err := engine.RemoveLineItem(ctx, rc, RemoveLineItemInput{OrderID: order.ID, LineID: added.Line.ID})
	if err != nil {
		t.Fatalf("RemoveLineItem: %v", err)
	}

	if removed.RemovedLineID != added.Line.ID {
		t.Fatalf("removed line id = %q, want %q", removed.RemovedLineID, added.Line.ID)
	}
	if removed.Order.SubtotalMinor != 0 || removed.Order.TaxMinor != 0 || removed.Order.TotalMinor != 0 {
		t.Fatalf("totals after removal = %d/%d/%d, want 0/0/0",
			removed.Order.SubtotalMinor, removed.Order.TaxMinor, removed.Order.TotalMinor)
	}
	// version: 1 (open) → 2 (add) → 3 (remove)
	if removed.Order.Version != 3 {
		t.Fatalf("version = %d, want 3", removed.Order.Version)
	}

	if got := store.CountLines(testTenant, order.ID); got != 0 {
		t.Fatalf("line count = %d, want 0", got)
	}
	if got := store.CountTaxLines(testTenant, order.ID); got != 0 {
		t.Fatalf("orphaned tax lines remain: %d", got)
	}
}

func TestRemoveLineItemUnknownLine(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)

	_, err := engine.RemoveLineItem(context.Background(), testRequestContext(), RemoveLineItemInput{
		OrderID: order.ID,
		LineID:  "missing-line",
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTotalsIncludeChargesAndDiscounts(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)

	store.SeedCharge(domain.OrderCharge{
		OrderID:        order.ID,
		TenantID:       testTenant,
		Name:           "Service",
		AmountMinor:    300,
		TaxAmountMinor: 30,
	})
	store.SeedDiscount(domain.OrderDiscount{
		OrderID:     order.ID,
		TenantID:    testTenant,
		Name:        "Promo",
		AmountMinor: 100,
	})

	result, err := engine.AddLineItem(context.Background(), testRequestContext(), AddLineItemInput{
		OrderID: order.ID,
		ItemID:  "item-espresso",
		Qty:     2,
	})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	// lines 1000/100/1100 + charge 300/30/330 - discount 100/0/100
	if result.Order.SubtotalMinor != 1200 {
		t.Fatalf("subtotal = %d, want 1200", result.Order.SubtotalMinor)
	}
	if result.Order.TaxMinor != 130 {
		t.Fatalf("tax = %d, want 130", result.Order.TaxMinor)
	}
	if result.Order.TotalMinor != 1330 {
		t.Fatalf("total = %d, want 1330", result.Order.TotalMinor)
	}
}

func TestPlaceOrder(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	if _, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 1}); err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	placed, err := engine.PlaceOrder(ctx, rc, PlaceOrderInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.Status != domain.OrderStatusPlaced {
		t.Fatalf("status = %q, want placed", placed.Order.Status)
	}
	if placed.Order.Version != 3 {
		t.Fatalf("version = %d, want 3", placed.Order.Version)
	}

	// Размещённый заказ больше не принимает мутации позиций.
	_, err = engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 1})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid_state after place, got %v", err)
	}
}

func TestPlaceOrderRejectsEmptyOrder(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)

	_, err := engine.PlaceOrder(context.Background(), testRequestContext(), PlaceOrderInput{OrderID: order.ID})
	if !domain.IsValidationFailed(err) {
		t.Fatalf("expected validation_failed, got %v", err)
	}

	stored, _ := store.GetOrder(testTenant, order.ID)
	if stored.Status != domain.OrderStatusOpen {
		t.Fatalf("failed place changed status to %q", stored.Status)
	}
	if stored.Version != 1 {
		t.Fatalf("failed place advanced version to %d", stored.Version)
	}
}

func TestVoidOrder(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	voided, err := engine.VoidOrder(ctx, rc, VoidOrderInput{OrderID: order.ID, Reason: "customer left"})
	if err != nil {
		t.Fatalf("VoidOrder: %v", err)
	}
	if voided.Order.Status != domain.OrderStatusVoided {
		t.Fatalf("status = %q, want voided", voided.Order.Status)
	}
	if voided.Order.VoidReason != "customer left" || voided.Order.VoidedBy != testUser {
		t.Fatalf("void attribution = %q/%q", voided.Order.VoidReason, voided.Order.VoidedBy)
	}

	// voided — терминальный статус: ни мутации, ни повторный void не проходят.
	_, err = engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 1})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid_state for mutation of voided order, got %v", err)
	}
	_, err = engine.VoidOrder(ctx, rc, VoidOrderInput{OrderID: order.ID, Reason: "again"})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid_state for double void, got %v", err)
	}
	_, err = engine.PlaceOrder(ctx, rc, PlaceOrderInput{OrderID: order.ID})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid_state for place after void, got %v", err)
	}

	stored, _ := store.GetOrder(testTenant, order.ID)
	if stored.Version != voided.Order.Version {
		t.Fatalf("rejected mutations advanced version: %d != %d", stored.Version, voided.Order.Version)
	}
}

func TestVoidOrderRequiresReason(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)

	_, err := engine.VoidOrder(context.Background(), testRequestContext(), VoidOrderInput{OrderID: order.ID})
	if !domain.IsValidationFailed(err) {
		t.Fatalf("expected validation_failed, got %v", err)
	}
}

func TestVoidPlacedOrder(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	if _, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 1}); err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}
	if _, err := engine.PlaceOrder(ctx, rc, PlaceOrderInput{OrderID: order.ID}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	voided, err := engine.VoidOrder(ctx, rc, VoidOrderInput{OrderID: order.ID, Reason: "mistake"})
	if err != nil {
		t.Fatalf("VoidOrder after place: %v", err)
	}
	if voided.Order.Status != domain.OrderStatusVoided {
		t.Fatalf("status = %q, want voided", voided.Order.Status)
	}
}

func TestGetOrder(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	if _, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 1}); err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}
	if _, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 3}); err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	view, err := engine.GetOrder(ctx, rc, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(view.Lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(view.Lines))
	}
	if view.Lines[0].SortOrder != 1 || view.Lines[1].SortOrder != 2 {
		t.Fatalf("lines out of order: %d, %d", view.Lines[0].SortOrder, view.Lines[1].SortOrder)
	}
	if view.Order.Version != 3 {
		t.Fatalf("version = %d, want 3", view.Order.Version)
	}

	_, err = engine.GetOrder(ctx, rc, "missing")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}

	// Чужой арендатор заказа не видит.
	otherTenant := domain.RequestContext{TenantID: "tenant-2", LocationID: testLocation}
	_, err = engine.GetOrder(ctx, otherTenant, order.ID)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not_found for foreign tenant, got %v", err)
	}
}

func TestIdempotentReplayReturnsCachedResult(t *testing.T) {
	engine, store, auditor := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()

	rc := testRequestContext()
	rc.ClientRequestID = "req-add-1"

	first, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 2})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}
	eventsAfterFirst, _ := store.PullPending(100)
	auditsAfterFirst := auditor.count()

	second, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 2})
	if err != nil {
		t.Fatalf("replayed AddLineItem: %v", err)
	}

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	if string(firstJSON) != string(secondJSON) {
		t.Fatalf("replay result differs:\nfirst:  %s\nsecond: %s", firstJSON, secondJSON)
	}

	if got := store.CountLines(testTenant, order.ID); got != 1 {
		t.Fatalf("replay duplicated the line: count = %d", got)
	}
	stored, _ := store.GetOrder(testTenant, order.ID)
	if stored.Version != first.Order.Version {
		t.Fatalf("replay advanced version: %d != %d", stored.Version, first.Order.Version)
	}

	eventsAfterSecond, _ := store.PullPending(100)
	if len(eventsAfterSecond) != len(eventsAfterFirst) {
		t.Fatalf("replay queued extra event: %d != %d", len(eventsAfterSecond), len(eventsAfterFirst))
	}
	if auditor.count() != auditsAfterFirst {
		t.Fatalf("replay submitted extra audit entry: %d != %d", auditor.count(), auditsAfterFirst)
	}
}

func TestIdempotencyKeysAreTenantScoped(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	rc1 := testRequestContext()
	rc1.ClientRequestID = "req-open"
	first, err := engine.OpenOrder(context.Background(), rc1, OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder: %v", err)
	}

	rc2 := domain.RequestContext{
		TenantID:        "tenant-2",
		LocationID:      testLocation,
		ClientRequestID: "req-open",
	}
	second, err := engine.OpenOrder(context.Background(), rc2, OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder for second tenant: %v", err)
	}

	if first.Order.ID == second.Order.ID {
		t.Fatal("same client key across tenants must not share results")
	}
	if second.Order.TenantID != "tenant-2" {
		t.Fatalf("tenant = %q, want tenant-2", second.Order.TenantID)
	}
}

func TestIdempotencyRecordExpires(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, testCatalog(),
		WithClock(clock.NewFixed(testNow)),
		WithIdempotencyTTL(time.Hour),
	)
	ctx := context.Background()

	rc := testRequestContext()
	rc.ClientRequestID = "req-open"
	first, err := engine.OpenOrder(ctx, rc, OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder: %v", err)
	}

	// Тот же стор, но часы ушли за TTL: запись просрочена, команда исполняется заново.
	later := NewEngine(store, testCatalog(),
		WithClock(clock.NewFixed(testNow.Add(2*time.Hour))),
		WithIdempotencyTTL(time.Hour),
	)
	second, err := later.OpenOrder(ctx, rc, OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder after expiry: %v", err)
	}
	if first.Order.ID == second.Order.ID {
		t.Fatal("expired record must not replay the cached result")
	}
}

func TestEmptyClientRequestIDDisablesDeduplication(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	for i := 0; i < 2; i++ {
		if _, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 1}); err != nil {
			t.Fatalf("AddLineItem #%d: %v", i+1, err)
		}
	}

	if got := store.CountLines(testTenant, order.ID); got != 2 {
		t.Fatalf("line count = %d, want 2 (no dedup without a key)", got)
	}
}

func TestVoidReplayOnTerminalOrder(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()

	rc := testRequestContext()
	rc.ClientRequestID = "req-void"

	first, err := engine.VoidOrder(ctx, rc, VoidOrderInput{OrderID: order.ID, Reason: "walkout"})
	if err != nil {
		t.Fatalf("VoidOrder: %v", err)
	}
	eventsAfterFirst, _ := store.PullPending(100)

	// Повтор с тем же ключом обслуживается из кэша, хотя заказ уже терминален.
	second, err := engine.VoidOrder(ctx, rc, VoidOrderInput{OrderID: order.ID, Reason: "walkout"})
	if err != nil {
		t.Fatalf("void replay: %v", err)
	}
	if second.Order.Version != first.Order.Version {
		t.Fatalf("replay version = %d, want %d", second.Order.Version, first.Order.Version)
	}

	eventsAfterSecond, _ := store.PullPending(100)
	if len(eventsAfterSecond) != len(eventsAfterFirst) {
		t.Fatal("void replay queued an extra event")
	}

	// А без ключа тот же вызов отсекается статусным предусловием.
	rcNoKey := testRequestContext()
	_, err = engine.VoidOrder(ctx, rcNoKey, VoidOrderInput{OrderID: order.ID, Reason: "walkout"})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid_state without a key, got %v", err)
	}
}

func TestConcurrentAddLineItems(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()
	rc := testRequestContext()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-water", Qty: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent AddLineItem: %v", err)
		}
	}

	stored, _ := store.GetOrder(testTenant, order.ID)
	if stored.Version != 1+workers {
		t.Fatalf("version = %d, want %d (exactly one increment per commit)", stored.Version, 1+workers)
	}
	if got := store.CountLines(testTenant, order.ID); got != workers {
		t.Fatalf("line count = %d, want %d", got, workers)
	}
	if stored.SubtotalMinor != int64(workers)*200 {
		t.Fatalf("subtotal = %d, want %d", stored.SubtotalMinor, int64(workers)*200)
	}
}

// failingRunner пропускает первые allow транзакций, затем каждая
// последующая завершается инфраструктурной ошибкой после исполнения тела —
// как обрыв соединения на commit.
type failingRunner struct {
	inner domain.TxRunner
	mu    sync.Mutex
	allow int
}

func (r *failingRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	r.mu.Lock()
	allowed := r.allow > 0
	if allowed {
		r.allow--
	}
	r.mu.Unlock()

	return r.inner.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := fn(ctx, uow); err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("simulated commit failure")
		}
		return nil
	})
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	store := memory.NewStore()
	runner := &failingRunner{inner: store, allow: 1}
	engine := NewEngine(runner, testCatalog(), WithClock(clock.NewFixed(testNow)))
	ctx := context.Background()

	rc := testRequestContext()
	opened, err := engine.OpenOrder(ctx, rc, OpenOrderInput{})
	if err != nil {
		t.Fatalf("OpenOrder: %v", err)
	}

	rc.ClientRequestID = "req-add"
	_, err = engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: opened.Order.ID, ItemID: "item-espresso", Qty: 1})
	if err == nil {
		t.Fatal("expected simulated failure")
	}
	if domain.KindOf(err) != domain.ErrorKindInternal {
		t.Fatalf("expected internal kind, got %v", domain.KindOf(err))
	}

	// После отката: ни позиции, ни налоговой разбивки, ни события, ни сдвига версии.
	if got := store.CountLines(testTenant, opened.Order.ID); got != 0 {
		t.Fatalf("rollback left %d lines", got)
	}
	if got := store.CountTaxLines(testTenant, opened.Order.ID); got != 0 {
		t.Fatalf("rollback left %d tax lines", got)
	}
	stored, _ := store.GetOrder(testTenant, opened.Order.ID)
	if stored.Version != 1 {
		t.Fatalf("rollback advanced version to %d", stored.Version)
	}
	events, _ := store.PullPending(100)
	if len(events) != 1 { // только order.opened
		t.Fatalf("rollback left %d pending events, want 1", len(events))
	}

	// Idempotency-запись тоже откатилась: повтор с тем же ключом исполняется заново.
	runner.allow = 1
	result, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: opened.Order.ID, ItemID: "item-espresso", Qty: 1})
	if err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	if result.Order.Version != 2 {
		t.Fatalf("retry version = %d, want 2", result.Order.Version)
	}
}

func TestCommandErrorsCarryKinds(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.GetOrder(ctx, domain.RequestContext{}, "some-order")
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *domain.Error, got %T", err)
	}
	if domainErr.Kind != domain.ErrorKindPreconditionMissing {
		t.Fatalf("kind = %q, want precondition_missing", domainErr.Kind)
	}
}

// blindKeyCheckRunner воспроизводит видимость READ COMMITTED: проверка ключа
// в начале транзакции не видит запись, которую конкурент успел закоммитить,
// пока мы ждали блокировку заказа. Сохранение результата идёт в настоящий стор.
type blindKeyCheckRunner struct {
	inner domain.TxRunner
}

func (r *blindKeyCheckRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return r.inner.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return fn(ctx, blindKeyCheckUow{uow})
	})
}

type blindKeyCheckUow struct {
	domain.UnitOfWork
}

func (blindKeyCheckUow) GetIdempotencyRecord(context.Context, string, string) (domain.IdempotencyRecord, bool, error) {
	return domain.IdempotencyRecord{}, false, nil
}

func TestConcurrentDuplicateExecutesSideEffectsOnce(t *testing.T) {
	engine, store, auditor := newTestEngine(t)
	order := openTestOrder(t, engine)
	ctx := context.Background()

	rc := testRequestContext()
	rc.ClientRequestID = "req-race-1"

	first, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 2})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}
	eventsAfterFirst, _ := store.PullPending(100)
	auditsAfterFirst := auditor.count()

	// Опоздавший дубликат: ключ при старте транзакции ещё не виден,
	// но к моменту записи результата соперник уже закоммитил свой.
	lateEngine := NewEngine(&blindKeyCheckRunner{inner: store}, testCatalog(),
		WithClock(clock.NewFixed(testNow)),
		WithAuditor(auditor),
	)
	_, err = lateEngine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 2})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid_state for late duplicate, got %v", err)
	}

	// Побочные эффекты дубликата откатились целиком.
	if got := store.CountLines(testTenant, order.ID); got != 1 {
		t.Fatalf("duplicate executed twice: line count = %d, want 1", got)
	}
	stored, _ := store.GetOrder(testTenant, order.ID)
	if stored.Version != first.Order.Version {
		t.Fatalf("duplicate advanced version: %d != %d", stored.Version, first.Order.Version)
	}
	eventsAfterDuplicate, _ := store.PullPending(100)
	if len(eventsAfterDuplicate) != len(eventsAfterFirst) {
		t.Fatalf("duplicate queued extra event: %d != %d", len(eventsAfterDuplicate), len(eventsAfterFirst))
	}
	if auditor.count() != auditsAfterFirst {
		t.Fatalf("duplicate submitted extra audit entry: %d != %d", auditor.count(), auditsAfterFirst)
	}

	// Обычный повтор после отказа обслуживается из кэша.
	replayed, err := engine.AddLineItem(ctx, rc, AddLineItemInput{OrderID: order.ID, ItemID: "item-espresso", Qty: 2})
	if err != nil {
		t.Fatalf("retry after rejected duplicate: %v", err)
	}
	firstJSON, _ := json.Marshal(first)
	replayedJSON, _ := json.Marshal(replayed)
	if string(firstJSON) != string(replayedJSON) {
		t.Fatalf("retry result differs:\nfirst: %s\nretry: %s", firstJSON, replayedJSON)
	}
}
