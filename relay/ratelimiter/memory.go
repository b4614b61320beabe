package ratelimiter

import "sync"

type MemoryBackend struct {
	mu   sync.RWMutex
	data map[ClientID]*ClientRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[ClientID]*ClientRecord),
	}
}

func (mb *MemoryBackend) Get(id ClientID) (*ClientRecord, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	record, exists := mb.data[id]
	if !exists {
		return nil, ErrNotFound
	}
	recordCopy := *record
	return &recordCopy, nil
}

func (mb *MemoryBackend) Set(id ClientID, record *ClientRecord) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	recordCopy := *record
	mb.data[id] = &recordCopy
	return nil
}

func (mb *MemoryBackend) Delete(id ClientID) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	delete(mb.data, id)
	return nil
}

func (mb *MemoryBackend) List() (map[ClientID]*ClientRecord, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	// Create a deep copy to avoid race conditions
	copyData := make(map[ClientID]*ClientRecord, len(mb.data))
	for k, v := range mb.data {
		recordCopy := *v
		copyData[k] = &recordCopy
	}
	return copyData, nil
}

func (mb *MemoryBackend) Clear() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.data = make(map[ClientID]*ClientRecord)
	return nil
}
