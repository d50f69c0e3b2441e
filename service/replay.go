package service

import (
	"go.uber.org/zap"

	"tern/domain/book"
	"tern/infra/wal"
)

// Replay rebuilds the book from the command journal and resumes the
// sequencer past the last journaled record. It must run before the
// service accepts traffic; replayed commands produce no journal writes,
// outbox rows or hub events.
func (s *OrderService) Replay(dir string) error {
	records := 0
	lastSeq, err := wal.Replay(dir, func(rec *wal.Record) error {
		cmd, err := wal.DecodeCommand(rec.Data)
		if err != nil {
			return err
		}

		switch rec.Type {
		case wal.RecordAdd:
			// Commands are journaled before validation; a rejected add
			// rejects identically on replay.
			_, _ = s.book.Add(&book.Order{
				ID:        cmd.OrderID,
				Side:      book.Side(cmd.Side),
				Type:      book.Type(cmd.Type),
				Price:     cmd.Price,
				Remainder: cmd.Qty,
			})
		case wal.RecordCancel:
			s.book.CancelBatch(cmd.IDs)
		case wal.RecordModify:
			_, _ = s.book.Modify(cmd.OrderID, book.Change{
				Side:      book.Side(cmd.Side),
				Price:     cmd.Price,
				Remainder: cmd.Qty,
			})
		}
		records++
		return nil
	})
	if err != nil {
		return err
	}

	s.seq.Reset(lastSeq)
	s.log.Info("journal replay complete",
		zap.Int("records", records),
		zap.Uint64("last_seq", lastSeq),
		zap.Int("resting_orders", s.book.Len()),
	)
	return nil
}
