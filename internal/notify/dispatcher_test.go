package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/repo"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger — Ledger в памяти с уникальностью (notification, channel).
type fakeLedger struct {
	mu       sync.Mutex
	records  map[string]struct{}
	conflict bool // имитация параллельной вставки
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]struct{})}
}

func ledgerKey(channel domain.Channel, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s", channel, id)
}

func (l *fakeLedger) HasDelivered(_ context.Context, channel domain.Channel, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[ledgerKey(channel, id)]
	return ok, nil
}

func (l *fakeLedger) Record(_ context.Context, rec *domain.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(rec.Channel, rec.NotificationID)
	if _, ok := l.records[key]; ok || l.conflict {
		return repo.ErrAlreadyExists
	}
	l.records[key] = struct{}{}
	return nil
}

// fakeSender — Sender, считающий отправки.
type fakeSender struct {
	mu       sync.Mutex
	sent     int
	declined bool
	err      error
}

func (s *fakeSender) Send(_ context.Context, _ domain.Channel, _ uuid.UUID, _ map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	if s.declined {
		return false, nil
	}
	s.sent++
	return true, nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func testNotification() *Notification {
	return &Notification{
		ID:      uuid.New(),
		EventID: uuid.New(),
		Payload: map[string]any{"orders": 3},
	}
}

func TestDispatcher_Deliver(t *testing.T) {
	ledger := newFakeLedger()
	sender := &fakeSender{}
	d := NewDispatcher(ledger, sender, quietLogger())

	n := testNotification()
	ok, err := d.Deliver(context.Background(), n, domain.ChannelEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected delivery to succeed")
	}
	if sender.count() != 1 {
		t.Errorf("expected 1 send, got %d", sender.count())
	}

	delivered, _ := ledger.HasDelivered(context.Background(), domain.ChannelEmail, n.ID)
	if !delivered {
		t.Error("delivery should be recorded in the ledger")
	}
}

func TestDispatcher_Deliver_Idempotent(t *testing.T) {
	ledger := newFakeLedger()
	sender := &fakeSender{}
	d := NewDispatcher(ledger, sender, quietLogger())

	n := testNotification()

	// Сколько бы раз ни пришло одно уведомление, канал получает его один раз
	for i := 0; i < 5; i++ {
		ok, err := d.Deliver(context.Background(), n, domain.ChannelEmail)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("attempt %d: duplicate must still report delivered", i)
		}
	}
	if sender.count() != 1 {
		t.Errorf("expected exactly 1 send, got %d", sender.count())
	}
}

func TestDispatcher_Deliver_ChannelsIndependent(t *testing.T) {
	ledger := newFakeLedger()
	sender := &fakeSender{}
	d := NewDispatcher(ledger, sender, quietLogger())

	n := testNotification()

	// Доставка по email не блокирует slack для того же уведомления
	if ok, _ := d.Deliver(context.Background(), n, domain.ChannelEmail); !ok {
		t.Fatal("email delivery should succeed")
	}
	if ok, _ := d.Deliver(context.Background(), n, domain.ChannelSlack); !ok {
		t.Fatal("slack delivery should succeed")
	}
	if sender.count() != 2 {
		t.Errorf("expected 2 sends, got %d", sender.count())
	}
}

func TestDispatcher_Deliver_ConcurrentInsertWins(t *testing.T) {
	ledger := newFakeLedger()
	ledger.conflict = true // запись упирается в ограничение уникальности
	sender := &fakeSender{}
	d := NewDispatcher(ledger, sender, quietLogger())

	ok, err := d.Deliver(context.Background(), testNotification(), domain.ChannelEmail)
	if err != nil {
		t.Fatalf("unique conflict must not be an error: %v", err)
	}
	if !ok {
		t.Error("conflict means someone already delivered — report success")
	}
}

func TestDispatcher_Deliver_SenderDeclined(t *testing.T) {
	ledger := newFakeLedger()
	sender := &fakeSender{declined: true}
	d := NewDispatcher(ledger, sender, quietLogger())

	n := testNotification()
	ok, err := d.Deliver(context.Background(), n, domain.ChannelEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("declined send must not count as delivered")
	}

	// Отказ не записывается: следующая попытка отправит заново
	delivered, _ := ledger.HasDelivered(context.Background(), domain.ChannelEmail, n.ID)
	if delivered {
		t.Error("declined send must not be recorded")
	}
}

func TestDispatcher_Deliver_SenderError(t *testing.T) {
	ledger := newFakeLedger()
	sender := &fakeSender{err: errors.New("smtp timeout")}
	d := NewDispatcher(ledger, sender, quietLogger())

	n := testNotification()
	ok, err := d.Deliver(context.Background(), n, domain.ChannelEmail)
	if err == nil {
		t.Fatal("expected sender error to propagate")
	}
	if ok {
		t.Error("failed send must not count as delivered")
	}

	delivered, _ := ledger.HasDelivered(context.Background(), domain.ChannelEmail, n.ID)
	if delivered {
		t.Error("failed send must not be recorded")
	}
}

func TestDispatcher_DeliverAll_ErrorIsolation(t *testing.T) {
	ledger := newFakeLedger()
	sender := &fakeSender{}
	d := NewDispatcher(ledger, sender, quietLogger())

	n := testNotification()

	// email уже доставлен, slack сломан на первом вызове — webhook
	// всё равно должен пройти
	if ok, _ := d.Deliver(context.Background(), n, domain.ChannelEmail); !ok {
		t.Fatal("setup delivery failed")
	}

	delivered := d.DeliverAll(context.Background(), n,
		[]domain.Channel{domain.ChannelEmail, domain.ChannelSlack, domain.ChannelWebhook})

	// email — дубликат (считается доставленным), slack и webhook — новые
	if delivered != 3 {
		t.Errorf("expected 3 delivered, got %d", delivered)
	}
	if sender.count() != 3 { // 1 из setup + slack + webhook
		t.Errorf("expected 3 sends total, got %d", sender.count())
	}
}
