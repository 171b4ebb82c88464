package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/turnpike-ai/turnpike/pkg/eventstream"
	"github.com/turnpike-ai/turnpike/pkg/storage"
	"github.com/turnpike-ai/turnpike/pkg/storage/inmemory"
	"github.com/turnpike-ai/turnpike/pkg/worker"
)

// recordingPublisher captures every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*eventstream.TurnCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*eventstream.TurnCompletedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// blockingDriver parks every Put until released, to hold jobs in flight.
type blockingDriver struct {
	started chan struct{}
	release chan struct{}
}

func (d *blockingDriver) Put(_ context.Context, _ *storage.TurnRecord) error {
	d.started <- struct{}{}
	<-d.release
	return nil
}

func (d *blockingDriver) Get(_ context.Context, id string) (*storage.TurnRecord, error) {
	return nil, storage.NotFoundError{ID: id}
}

func (d *blockingDriver) BySession(_ context.Context, _ string) ([]*storage.TurnRecord, error) {
	return nil, nil
}

func (d *blockingDriver) Close() error { return nil }

var _ = Describe("Pool", func() {
	newJob := func(id string) worker.Job {
		started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		return worker.Job{
			Provider: "ollama",
			Record: &storage.TurnRecord{
				ID:           id,
				SessionID:    "s1",
				Model:        "llama3.2",
				FinishReason: "stop",
				CreatedAt:    started,
			},
			StartedAt:   started,
			CompletedAt: started.Add(1500 * time.Millisecond),
		}
	}

	It("archives enqueued records before Close returns", func() {
		driver := inmemory.NewDriver()
		pool, err := worker.NewPool(&worker.Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(newJob("t1"))).To(BeTrue())
		Expect(pool.Enqueue(newJob("t2"))).To(BeTrue())
		pool.Close()

		for _, id := range []string{"t1", "t2"} {
			record, err := driver.Get(context.Background(), id)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.SessionID).To(Equal("s1"))
		}
	})

	It("publishes a completion event for every archived turn", func() {
		driver := inmemory.NewDriver()
		publisher := &recordingPublisher{}
		pool, err := worker.NewPool(&worker.Config{Driver: driver, Publisher: publisher})
		Expect(err).NotTo(HaveOccurred())

		job := newJob("t1")
		Expect(pool.Enqueue(job)).To(BeTrue())
		pool.Close()

		events := publisher.published()
		Expect(events).To(HaveLen(1))
		event := events[0]
		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnCompleted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.Source.Provider).To(Equal("ollama"))
		Expect(event.Source.Model).To(Equal("llama3.2"))
		Expect(event.Turn.TurnID).To(Equal("t1"))
		Expect(event.Turn.DurationMs).To(Equal(int64(1500)))
	})

	It("still archives when publishing fails", func() {
		driver := inmemory.NewDriver()
		publisher := &recordingPublisher{err: errors.New("broker down")}
		pool, err := worker.NewPool(&worker.Config{Driver: driver, Publisher: publisher})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(newJob("t1"))).To(BeTrue())
		pool.Close()

		_, err = driver.Get(context.Background(), "t1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("drops jobs instead of blocking when the queue is full", func() {
		driver := &blockingDriver{
			started: make(chan struct{}),
			release: make(chan struct{}),
		}
		pool, err := worker.NewPool(&worker.Config{
			Driver:     driver,
			NumWorkers: 1,
			QueueSize:  1,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(newJob("t1"))).To(BeTrue())
		// Wait for the worker to take t1 off the queue before filling it.
		Eventually(driver.started).Should(Receive())

		Expect(pool.Enqueue(newJob("t2"))).To(BeTrue())
		Expect(pool.Enqueue(newJob("t3"))).To(BeFalse())

		close(driver.release)
		Eventually(driver.started).Should(Receive())
		pool.Close()
	})
})
