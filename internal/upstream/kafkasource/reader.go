package kafkasource

import (
	"context"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/mbiondo/partition-sink/internal/partition"
)

// partitionReader owns a single plain (non-group) kafka.Reader fetching
// one assigned partition, batching messages up to Source.cfg.BatchSize or
// PollInterval before calling sink.Write, and consulting the shared gate
// for pause/resume/seek between batches.
type partitionReader struct {
	source      *Source
	id          partition.ID
	startOffset int64
}

// newPartitionReader records the offset kafka-go's own group-assignment
// protocol already resolved for p so run can seek there before its first
// fetch. For a partition with no committed group offset kafka-go reports
// a negative relative offset, and run then leaves the reader at its
// default start position; Config.StartOffset is not read. Machine.resetOffsetFromCommitted may later issue its own
// Seek once recovery finds a different highWater; that seek always wins
// because it is applied via the gate on every iteration of run's loop.
func newPartitionReader(s *Source, p partition.ID, startOffset int64) *partitionReader {
	return &partitionReader{source: s, id: p, startOffset: startOffset}
}

// run fetches messages for pr.id until quit fires, batching and handing
// them to the sink, honoring pause/resume/seek from the gate and the
// backoff requested via RequestBackoff.
func (pr *partitionReader) run(ctx context.Context, quit <-chan struct{}, gen *kafka.Generation) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   pr.source.cfg.Brokers,
		Topic:     pr.id.Topic,
		Partition: pr.id.PartitionID,
		MinBytes:  nonZero(pr.source.cfg.MinBytes, 1),
		MaxBytes:  nonZero(pr.source.cfg.MaxBytes, 10*1024*1024),
		Dialer:    pr.source.dialer,
	})
	defer func() { _ = reader.Close() }()
	if pr.startOffset >= 0 {
		if err := reader.SetOffset(pr.startOffset); err != nil {
			pr.source.logf("partition %s: initial seek to %d failed: %v", pr.id, pr.startOffset, err)
		}
	}

	batch := make([]partition.Record, 0, pr.source.cfg.BatchSize)
	ticker := time.NewTicker(pr.source.cfg.PollInterval)
	defer ticker.Stop()

	// flush hands the batch to the sink and only then commits the
	// group's position — and only up to what the sink actually reports
	// durable via CommittedOffsets (highWater+1), never past the last
	// offset merely delivered to Write. Committing from delivery instead
	// of from the sink's own durable watermark would let the consumer
	// group race ahead of the WAL/committed-file state, so a crash
	// between the two commits would permanently skip the gap on restart.
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := pr.source.sink.Write(ctx, batch); err != nil {
			pr.source.logf("partition %s: sink write error: %v", pr.id, err)
		}
		batch = batch[:0]
		if next, ok := pr.source.sink.CommittedOffsets()[pr.id]; ok {
			_ = gen.CommitOffsets(map[string]map[int]int64{pr.id.Topic: {pr.id.PartitionID: next}})
		}
	}

	for {
		select {
		case <-quit:
			flush()
			return
		case <-ctx.Done():
			flush()
			return
		default:
		}

		if backoffMs := pr.source.gate.takeBackoff(); backoffMs > 0 {
			flush()
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-quit:
				return
			}
			continue
		}

		if offset, ok := pr.source.gate.takeSeek(pr.id); ok {
			if err := reader.SetOffset(offset); err != nil {
				pr.source.logf("partition %s: seek to %d failed: %v", pr.id, offset, err)
			}
		}

		if pr.source.gate.isPaused(pr.id) {
			select {
			case <-ticker.C:
			case <-quit:
				flush()
				return
			}
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, pr.source.cfg.PollInterval)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				flush()
				continue
			}
			if ctx.Err() != nil {
				flush()
				return
			}
			pr.source.logf("partition %s: fetch error: %v", pr.id, err)
			continue
		}

		batch = append(batch, partition.Record{
			Partition: pr.id,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Headers:   headerMap(msg.Headers),
		})

		if len(batch) >= pr.source.cfg.BatchSize {
			flush()
		}
	}
}

func headerMap(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
