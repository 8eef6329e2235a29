package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/services/sms"
)

const (
	defaultQueueSize  = 256
	defaultMaxRetries = 3
	baseBackoff       = 2 * time.Second
	sendTimeout       = 15 * time.Second
)

// task is one queued SMS delivery.
type task struct {
	phone   string
	message string
	attempt int
}

// Queue delivers booking notifications in the background so transactional
// paths never block on the SMS provider. Delivery is at-least-once with
// bounded retries and exponential backoff; a message that exhausts its
// retries is logged and dropped.
type Queue struct {
	sender  sms.Sender
	tasks   chan task
	retries int

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewQueue starts a queue with the given number of delivery workers.
func NewQueue(sender sms.Sender, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		sender:  sender,
		tasks:   make(chan task, defaultQueueSize),
		retries: defaultMaxRetries,
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.deliver(t)
	}
}

func (q *Queue) deliver(t task) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := q.sender.Send(ctx, t.phone, t.message)
		cancel()
		if err == nil {
			return
		}

		t.attempt++
		if t.attempt > q.retries {
			log.Printf("sms delivery to %s dropped after %d attempts: %v", t.phone, t.attempt, err)
			return
		}

		backoff := baseBackoff << (t.attempt - 1)
		log.Printf("sms delivery to %s failed (attempt %d): %v; retrying in %s", t.phone, t.attempt, err, backoff)
		select {
		case <-time.After(backoff):
		case <-q.stopped:
			return
		}
	}
}

// enqueue drops the message when the queue is full or shut down rather than
// blocking the caller.
func (q *Queue) enqueue(phone, message string) {
	if phone == "" {
		return
	}
	select {
	case <-q.stopped:
		log.Printf("sms queue stopped; dropping message to %s", phone)
	default:
		select {
		case q.tasks <- task{phone: phone, message: message}:
		default:
			log.Printf("sms queue full; dropping message to %s", phone)
		}
	}
}

// Shutdown stops accepting work and waits for in-flight deliveries.
func (q *Queue) Shutdown() {
	q.stopOnce.Do(func() {
		close(q.stopped)
		close(q.tasks)
	})
	q.wg.Wait()
}

// BookingConfirmed notifies a student that their seat is reserved and the
// first installment is due.
func (q *Queue) BookingConfirmed(student model.Student, group model.Group, invoice *model.Invoice) {
	msg := fmt.Sprintf("Bimuz: %s, your seat in the %s group (%s at %s) is reserved.",
		student.FullName, group.Speciality, group.Schedule, group.LessonTime)
	if invoice != nil {
		msg += fmt.Sprintf(" First installment: %s UZS.", invoice.Amount.StringFixed(0))
	}
	q.enqueue(student.Phone, msg)
}

// BookingCancelled notifies a student that their booking was released.
func (q *Queue) BookingCancelled(student model.Student, group model.Group) {
	msg := fmt.Sprintf("Bimuz: %s, your booking in the %s group has been cancelled.",
		student.FullName, group.Speciality)
	q.enqueue(student.Phone, msg)
}
