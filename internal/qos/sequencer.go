package qos

// Sequencer owns the per-producer batch counter.
//
// A Sequencer belongs to exactly one producer and is not safe for concurrent
// use. The counter starts at 0 and is never persisted.
type Sequencer struct {
	next       uint64
	producerID string
}

// NewSequencer returns a counter starting at 0. producerID is stamped into
// every batch and may be empty.
func NewSequencer(producerID string) *Sequencer {
	return &Sequencer{producerID: producerID}
}

// Peek returns the number the next batch will carry.
func (s *Sequencer) Peek() uint64 {
	return s.next
}

// Next returns the current value and advances the counter by one.
func (s *Sequencer) Next() uint64 {
	n := s.next
	s.next++
	return n
}

// BuildBatch stamps a new ControlMessage with the next sequence number.
// It consumes exactly one number per call, including for empty batches.
// Records are deep-copied.
func (s *Sequencer) BuildBatch(records []Update) ControlMessage {
	updates := make([]Update, len(records))
	for i, u := range records {
		updates[i] = u.Clone()
	}
	return ControlMessage{
		SequenceNumber: s.Next(),
		ProducerID:     s.producerID,
		Updates:        updates,
	}
}
