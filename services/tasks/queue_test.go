package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimuz/bimuz-api/model"
)

// recordingSender captures sent messages and can fail the first N attempts.
type recordingSender struct {
	mu       sync.Mutex
	sent     []string
	phones   []string
	failures int
}

func (r *recordingSender) Send(_ context.Context, phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("provider unavailable")
	}
	r.phones = append(r.phones, phone)
	r.sent = append(r.sent, message)
	return nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	copy(out, r.sent)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestQueueBookingConfirmed(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, 1)
	defer q.Shutdown()

	student := model.Student{FullName: "Jasur Toshev", Phone: "+998901234567"}
	group := model.Group{
		Speciality: model.SpecialityRevitArchitecture,
		Schedule:   model.ScheduleMonWedFri,
		LessonTime: "14:00",
	}
	invoice := &model.Invoice{Amount: decimal.RequireFromString("500000")}

	q.BookingConfirmed(student, group, invoice)

	waitFor(t, func() bool { return len(sender.messages()) == 1 })

	msg := sender.messages()[0]
	if !strings.Contains(msg, "Jasur Toshev") {
		t.Errorf("message missing student name: %q", msg)
	}
	if !strings.Contains(msg, "500000 UZS") {
		t.Errorf("message missing installment amount: %q", msg)
	}
}

func TestQueueBookingCancelled(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, 1)
	defer q.Shutdown()

	student := model.Student{FullName: "Jasur Toshev", Phone: "+998901234567"}
	group := model.Group{Speciality: model.SpecialityTeklaStructure}

	q.BookingCancelled(student, group)

	waitFor(t, func() bool { return len(sender.messages()) == 1 })

	if !strings.Contains(sender.messages()[0], "cancelled") {
		t.Errorf("unexpected cancellation message: %q", sender.messages()[0])
	}
}

func TestQueueRetriesTransientFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps for seconds")
	}

	sender := &recordingSender{failures: 2}
	q := NewQueue(sender, 1)
	defer q.Shutdown()

	student := model.Student{FullName: "Jasur Toshev", Phone: "+998901234567"}
	q.BookingCancelled(student, model.Group{Speciality: model.SpecialityRevitStructure})

	// Two failures then success on the third attempt (within maxRetries).
	waitFor(t, func() bool { return len(sender.messages()) == 1 })
}

func TestQueueSkipsEmptyPhone(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, 1)

	q.BookingCancelled(model.Student{FullName: "No Phone"}, model.Group{})
	q.Shutdown()

	if len(sender.messages()) != 0 {
		t.Errorf("expected no delivery for empty phone, got %d", len(sender.messages()))
	}
}
