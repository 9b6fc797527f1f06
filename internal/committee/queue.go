package committee

// OldestQueueKey returns the key of the longest-waiting queue entry, or ""
// when the queue is empty. Push keys sort in insertion order.
func OldestQueueKey(queue map[string]SpeakerEvent) string {
	keys := sortedKeys(queue)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// NextSpeaker is the advance transition: the oldest queue entry becomes
// Speaking, the previous Speaking (if any) moves into History under
// historyKey, and the speaker timer resets to its default. The whole next
// CaucusState is computed here so callers can commit it in a single write,
// minimizing the window of observable inconsistency.
//
// The second return value is false when the queue is empty; the input state
// is returned unchanged.
func NextSpeaker(c CaucusState, historyKey string) (CaucusState, bool) {
	popped := OldestQueueKey(c.Queue)
	if popped == "" {
		return c, false
	}

	next := c.Clone()
	up := next.Queue[popped]
	delete(next.Queue, popped)
	if len(next.Queue) == 0 {
		next.Queue = nil
	}
	if next.Speaking != nil {
		if next.History == nil {
			next.History = make(map[string]SpeakerEvent, 1)
		}
		next.History[historyKey] = *next.Speaking
	}
	next.Speaking = &up
	next.SpeakerTimer = DefaultTimer()
	return next, true
}
