package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"PoolLedger/internal/observability"
)

// Record mirrors core.Output to avoid coupling persistence to the engine
// package. The orchestrator (cmd/poolledger) bridges between the two.
type Record struct {
	Event EventRow

	// Bank is set when the event touched a bank; nil for group-level events.
	Bank *BankRow

	// Group is set when the event changed the group admin.
	Group *GroupRow
}

// Worker drains the persist channel and batch-writes to Postgres. The
// persist channel uses BLOCKING sends from the engine, so if this worker
// falls behind the engine stalls rather than losing an applied event.
type Worker struct {
	writer       *EventLogWriter
	inputChan    <-chan Record
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan Record,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the worker loop. It batches incoming records and flushes either
// when the batch is full or the flush timeout expires. Blocks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]Record, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case rec, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			batch = append(batch, rec)

			if len(batch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// batch: it retries until the write succeeds or ctx is cancelled, and even
// then makes a final attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, batch []Record) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, records=%d)",
				attempt, backoff, len(batch))
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []Record) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	events := make([]EventRow, 0, len(batch))
	for _, rec := range batch {
		events = append(events, rec.Event)
	}
	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	// Collapse to the last projection per bank: within one batch only the
	// final state of each bank matters.
	latestBank := make(map[string]*BankRow)
	var latestGroup *GroupRow
	for i := range batch {
		if b := batch[i].Bank; b != nil {
			latestBank[b.AssetID] = b
		}
		if g := batch[i].Group; g != nil {
			latestGroup = g
		}
	}

	for _, row := range latestBank {
		if err := w.writer.UpsertBank(ctx, tx, *row); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("upsert_bank").Inc()
			}
			return err
		}
	}
	if latestGroup != nil {
		if err := w.writer.UpsertGroup(ctx, tx, *latestGroup); err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("upsert_group").Inc()
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDuration.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}

// Writer exposes the underlying writer for startup loads.
func (w *Worker) Writer() *EventLogWriter {
	return w.writer
}
