package sweep

// DefaultCapacity is the number of history samples kept when no capacity is configured
const DefaultCapacity = 100

// Buffer keeps the retained sweep history plus the most recent sample.
//
// The current sample is not counted against the capacity; it moves into history only when
// a newer sample supersedes it. Buffer is not safe for concurrent use, the session owns it.
type Buffer struct {
	capacity int
	history  []Sample
	current  Sample
	hasCur   bool
}

// NewBuffer creates a buffer retaining up to capacity history samples
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		history:  make([]Sample, 0, capacity+1),
	}
}

// Capacity returns the history limit
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Push records a new sample. base is the x-axis channel with its sign stripped; when the new
// raw base value is below the current one the sweep is running backward and every history
// entry beyond the new value is trimmed. Push returns how many entries were trimmed.
func (b *Buffer) Push(s Sample, base Channel) int {
	trimmed := 0
	if b.hasCur {
		x := s.Value(base)
		if x < b.current.Value(base) {
			trimmed = b.trimAbove(base, x)
		}

		b.history = append(b.history, b.current)
		if len(b.history) > b.capacity {
			// shift in place so the backing array does not creep forward
			copy(b.history, b.history[1:])
			b.history = b.history[:len(b.history)-1]
		}
	}

	b.current = s
	b.hasCur = true
	return trimmed
}

// trimAbove drops history entries whose raw base value is strictly greater than limit
func (b *Buffer) trimAbove(base Channel, limit float64) int {
	kept := b.history[:0]
	for _, h := range b.history {
		if h.Value(base) > limit {
			continue
		}
		kept = append(kept, h)
	}
	removed := len(b.history) - len(kept)
	b.history = kept
	return removed
}

// Clear empties the history and unsets the current sample
func (b *Buffer) Clear() {
	b.history = b.history[:0]
	b.current = Sample{}
	b.hasCur = false
}

// History returns a copy of the history in insertion order
func (b *Buffer) History() []Sample {
	out := make([]Sample, len(b.history))
	copy(out, b.history)
	return out
}

// Current returns the most recent sample, if any
func (b *Buffer) Current() (Sample, bool) {
	return b.current, b.hasCur
}

// Len counts history plus the current sample
func (b *Buffer) Len() int {
	if b.hasCur {
		return len(b.history) + 1
	}
	return len(b.history)
}

// Empty reports whether neither history nor a current sample exists
func (b *Buffer) Empty() bool {
	return b.Len() == 0
}

// Samples returns history followed by the current sample
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, 0, b.Len())
	out = append(out, b.history...)
	if b.hasCur {
		out = append(out, b.current)
	}
	return out
}
