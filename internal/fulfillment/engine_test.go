package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/models"
	"github.com/meililab/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory order store. MarkPaid is a compare-and-set under the mutex, the
// same guarantee the conditional UPDATE gives in PostgreSQL.
// ---------------------------------------------------------------------------

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	getErr error
	// readGate, when set, holds every reader until all expected readers
	// have seen the order, forcing them into the conditional update together.
	readGate *sync.WaitGroup
	// afterMark runs once the conditional update has committed.
	afterMark func()
}

func newMemOrders(orders ...*models.Order) *memOrders {
	m := &memOrders{orders: map[string]*models.Order{}}
	for _, o := range orders {
		cp := *o
		m.orders[o.TradeNo] = &cp
	}
	return m
}

func (m *memOrders) GetByTradeNo(_ context.Context, tradeNo string) (*models.Order, error) {
	m.mu.Lock()
	if m.getErr != nil {
		m.mu.Unlock()
		return nil, m.getErr
	}
	o, ok := m.orders[tradeNo]
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	cp := *o
	gate := m.readGate
	m.mu.Unlock()
	if gate != nil {
		gate.Done()
		gate.Wait()
	}
	return &cp, nil
}

func (m *memOrders) MarkPaid(_ context.Context, tradeNo string, paidAt time.Time) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[tradeNo]
	if !ok || o.Status != models.OrderStatusPending {
		return nil, repository.ErrConflict
	}
	o.Status = models.OrderStatusPaid
	o.PaidAt = &paidAt
	cp := *o
	if m.afterMark != nil {
		m.afterMark()
	}
	return &cp, nil
}

func (m *memOrders) get(tradeNo string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[tradeNo]
}

type memCredits struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	calls    int
	err      error
}

func (m *memCredits) AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	// A cancelled context fails the statement, as it does in pgx.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.balances == nil {
		m.balances = map[uuid.UUID]int{}
	}
	m.balances[userID] += delta
	return m.balances[userID], nil
}

func (m *memCredits) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

type countingDistributor struct {
	mu      sync.Mutex
	orders  []models.Order
	ctxErrs []error
}

func (d *countingDistributor) Distribute(ctx context.Context, o *models.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orders = append(d.orders, *o)
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
}

func (d *countingDistributor) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.orders)
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const tradeNo = "ML1700000000ABCDEF"

func pendingOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:        uuid.New(),
		TradeNo:   tradeNo,
		UserID:    userID,
		Amount:    decimal.RequireFromString("9.9"),
		Credits:   12,
		Status:    models.OrderStatusPending,
		CreatedAt: time.Now(),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestFulfill_PendingOrder(t *testing.T) {
	user := uuid.New()
	orders := newMemOrders(pendingOrder(user))
	credits := &memCredits{}
	dist := &countingDistributor{}
	engine := NewEngine(orders, credits, dist, nil)

	res, err := engine.Fulfill(context.Background(), tradeNo)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if res.AlreadyPaid {
		t.Error("first fulfillment reported AlreadyPaid")
	}
	if res.Credits != 12 {
		t.Errorf("credits: got %d, want 12", res.Credits)
	}

	if got := credits.balance(user); got != 12 {
		t.Errorf("balance: got %d, want 12", got)
	}
	stored := orders.get(tradeNo)
	if stored.Status != models.OrderStatusPaid {
		t.Errorf("status: got %q, want paid", stored.Status)
	}
	if stored.PaidAt == nil {
		t.Fatal("paid_at not set")
	}
	if dist.count() != 1 {
		t.Fatalf("distributor calls: got %d, want 1", dist.count())
	}
	if dist.orders[0].Status != models.OrderStatusPaid {
		t.Errorf("distributor saw status %q", dist.orders[0].Status)
	}
}

func TestFulfill_SecondCallIsAlreadyPaid(t *testing.T) {
	user := uuid.New()
	orders := newMemOrders(pendingOrder(user))
	credits := &memCredits{}
	dist := &countingDistributor{}
	engine := NewEngine(orders, credits, dist, nil)

	if _, err := engine.Fulfill(context.Background(), tradeNo); err != nil {
		t.Fatalf("first Fulfill: %v", err)
	}

	res, err := engine.Fulfill(context.Background(), tradeNo)
	if err != nil {
		t.Fatalf("second Fulfill: %v", err)
	}
	if !res.AlreadyPaid {
		t.Error("second fulfillment should report AlreadyPaid")
	}
	if res.Credits != 12 {
		t.Errorf("credits: got %d, want 12", res.Credits)
	}
	if got := credits.balance(user); got != 12 {
		t.Errorf("balance: got %d, want 12", got)
	}
	if dist.count() != 1 {
		t.Errorf("distributor calls: got %d, want 1", dist.count())
	}
}

func TestFulfill_UnknownOrder(t *testing.T) {
	engine := NewEngine(newMemOrders(), &memCredits{}, &countingDistributor{}, nil)

	_, err := engine.Fulfill(context.Background(), "ML0000000000NOPE00")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("got %v, want ErrOrderNotFound", err)
	}
}

func TestFulfill_StoreErrorIsNotNotFound(t *testing.T) {
	orders := newMemOrders(pendingOrder(uuid.New()))
	orders.getErr = errors.New("connection refused")
	engine := NewEngine(orders, &memCredits{}, &countingDistributor{}, nil)

	_, err := engine.Fulfill(context.Background(), tradeNo)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrRaceLost) {
		t.Errorf("store failure misreported as %v", err)
	}
}

func TestFulfill_CreditFailureKeepsOrderPaid(t *testing.T) {
	orders := newMemOrders(pendingOrder(uuid.New()))
	credits := &memCredits{err: errors.New("statement timeout")}
	dist := &countingDistributor{}
	engine := NewEngine(orders, credits, dist, nil)

	res, err := engine.Fulfill(context.Background(), tradeNo)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if res.Credits != 12 {
		t.Errorf("credits: got %d, want 12", res.Credits)
	}
	if st := orders.get(tradeNo).Status; st != models.OrderStatusPaid {
		t.Errorf("status: got %q, want paid", st)
	}
	if dist.count() != 1 {
		t.Errorf("distributor calls: got %d, want 1", dist.count())
	}
}

func TestFulfill_ConcurrentCallersSingleWinner(t *testing.T) {
	const callers = 32
	user := uuid.New()
	orders := newMemOrders(pendingOrder(user))
	var gate sync.WaitGroup
	gate.Add(callers)
	orders.readGate = &gate

	credits := &memCredits{}
	dist := &countingDistributor{}
	engine := NewEngine(orders, credits, dist, nil)

	type outcome struct {
		res Result
		err error
	}
	results := make(chan outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Fulfill(context.Background(), tradeNo)
			results <- outcome{res, err}
		}()
	}
	wg.Wait()
	close(results)

	var winners, lost int
	for o := range results {
		switch {
		case o.err == nil && !o.res.AlreadyPaid:
			winners++
		case errors.Is(o.err, ErrRaceLost):
			lost++
		default:
			t.Errorf("unexpected outcome %+v", o)
		}
	}
	if winners != 1 || lost != callers-1 {
		t.Errorf("winners=%d lost=%d, want 1 and %d", winners, lost, callers-1)
	}
	if got := credits.balance(user); got != 12 {
		t.Errorf("balance: got %d, want 12", got)
	}
	if credits.calls != 1 {
		t.Errorf("credit grants: got %d, want 1", credits.calls)
	}
	if dist.count() != 1 {
		t.Errorf("distributor calls: got %d, want 1", dist.count())
	}
}

func TestFulfill_ConcurrentWithoutGate(t *testing.T) {
	const callers = 64
	user := uuid.New()
	orders := newMemOrders(pendingOrder(user))
	credits := &memCredits{}
	dist := &countingDistributor{}
	engine := NewEngine(orders, credits, dist, nil)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Fulfill(context.Background(), tradeNo)
			if err != nil && !errors.Is(err, ErrRaceLost) {
				t.Errorf("unexpected error: %v", err)
			}
			if err == nil && res.Credits != 12 {
				t.Errorf("unexpected credits %d", res.Credits)
			}
		}()
	}
	wg.Wait()

	if got := credits.balance(user); got != 12 {
		t.Errorf("balance: got %d, want 12", got)
	}
	if dist.count() != 1 {
		t.Errorf("distributor calls: got %d, want 1", dist.count())
	}
}

func TestFulfill_GrantSurvivesCallerCancellation(t *testing.T) {
	user := uuid.New()
	orders := newMemOrders(pendingOrder(user))
	credits := &memCredits{}
	dist := &countingDistributor{}
	engine := NewEngine(orders, credits, dist, nil)

	// The caller goes away right after the order is marked paid.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orders.afterMark = cancel

	res, err := engine.Fulfill(ctx, tradeNo)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if res.Credits != 12 {
		t.Errorf("credits: got %d, want 12", res.Credits)
	}
	if got := credits.balance(user); got != 12 {
		t.Fatalf("balance after cancelled request: got %d, want 12", got)
	}
	if dist.count() != 1 || dist.ctxErrs[0] != nil {
		t.Errorf("distributor should run on a live context, got errs %v", dist.ctxErrs)
	}

	res, err = engine.Fulfill(context.Background(), tradeNo)
	if err != nil || !res.AlreadyPaid {
		t.Fatalf("retry: res=%+v err=%v", res, err)
	}
	if got := credits.balance(user); got != 12 {
		t.Errorf("retry must not grant again, balance %d", got)
	}
}
