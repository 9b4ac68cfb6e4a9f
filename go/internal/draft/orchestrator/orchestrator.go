package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// DraftApp defines what the orchestrator needs from the draft app.
type DraftApp interface {
	NextDeadline(ctx context.Context) (*time.Time, error)
	RoomsDue(ctx context.Context, limit int32) ([]uuid.UUID, error)
	ResolveDeadline(ctx context.Context, roomID uuid.UUID) error
}

// Orchestrator sleeps until the earliest room deadline and dispatches due
// rooms to a worker pool. Every transition it triggers is a guarded write,
// so a duplicate or spurious wakeup is harmless.
type Orchestrator struct {
	app        DraftApp
	batchSize  int32
	clock      Clock
	wakeCh     chan struct{}
	instanceID string

	numWorkers int
	workCh     chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

// NewOrchestrator creates a new deadline orchestrator with a worker pool.
func NewOrchestrator(app DraftApp, batchSize int32) *Orchestrator {
	return NewOrchestratorWithClock(app, batchSize, clockwork.NewRealClock())
}

// NewOrchestratorWithClock is the injectable-clock constructor used by tests.
func NewOrchestratorWithClock(app DraftApp, batchSize int32, clock Clock) *Orchestrator {
	numWorkers := 4
	return &Orchestrator{
		app:        app,
		batchSize:  batchSize,
		clock:      clock,
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8],

		numWorkers: numWorkers,
		workCh:     make(chan uuid.UUID, numWorkers*2),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// Wake nudges the scheduler after a transition stored a sooner deadline.
func (o *Orchestrator) Wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

const idlePollDuration = 5 * time.Second

// Run loops until the context ends, sleeping until the next deadline and
// dispatching due rooms.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().Str("instance", o.instanceID).Int("workers", o.numWorkers).Msg("Scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(workerCtx, &wg, i)
	}

	defer func() {
		cancelWorkers()
		close(o.workCh)
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("All workers shut down")
	}()

	timer := o.clock.NewTimer(0)
	defer timer.Stop()

	retryCount := 0
	const maxRetries = 3

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.wakeCh:
			// Drain the pending wake before recomputing the deadline.
		default:
		}

		deadline, err := o.app.NextDeadline(ctx)
		if err != nil {
			retryCount++
			if retryCount <= maxRetries {
				log.Error().
					Err(err).
					Int("retry", retryCount).
					Str("instance", o.instanceID).
					Msg("Error fetching next deadline, retrying")
				timer.Reset(time.Second * time.Duration(retryCount))
				select {
				case <-timer.Chan():
					continue
				case <-ctx.Done():
					return nil
				}
			}
			log.Error().Err(err).Str("instance", o.instanceID).Msg("Error fetching next deadline after retries")
			return err
		}
		retryCount = 0

		if deadline == nil {
			timer.Reset(idlePollDuration)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			case <-o.wakeCh:
				continue
			}
		}

		if wait := deadline.Sub(o.clock.Now()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				return nil
			case <-o.wakeCh:
				// A sooner deadline may have been stored; recompute.
				continue
			}
		}

		due, err := o.app.RoomsDue(ctx, o.batchSize)
		if err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("Error fetching due rooms")
			timer.Reset(time.Second)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		queued := 0
		for _, roomID := range due {
			o.inFlightMu.Lock()
			if o.inFlight[roomID] {
				o.inFlightMu.Unlock()
				continue
			}
			o.inFlight[roomID] = true
			o.inFlightMu.Unlock()

			select {
			case <-ctx.Done():
				o.inFlightMu.Lock()
				delete(o.inFlight, roomID)
				o.inFlightMu.Unlock()
				return nil
			case o.workCh <- roomID:
				queued++
			}
		}

		if queued == 0 && len(due) > 0 {
			// Everything due is already being worked; give the workers a
			// moment before recomputing.
			timer.Reset(200 * time.Millisecond)
			select {
			case <-timer.Chan():
			case <-ctx.Done():
				return nil
			case <-o.wakeCh:
			}
		}
	}
}

// worker processes room deadlines from the work channel.
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case roomID, ok := <-o.workCh:
			if !ok {
				return
			}

			log.Debug().
				Str("roomId", roomID.String()).
				Str("instance", o.instanceID).
				Int("workerId", workerID).
				Msg("Worker resolving deadline")

			if err := o.app.ResolveDeadline(ctx, roomID); err != nil {
				log.Error().
					Err(err).
					Str("roomId", roomID.String()).
					Str("instance", o.instanceID).
					Msg("Deadline resolution failed")
			}

			o.inFlightMu.Lock()
			delete(o.inFlight, roomID)
			o.inFlightMu.Unlock()
		}
	}
}
