package memory

import (
	"errors"
	"sync"

	"github.com/keytune/keytune/pkg/util"
)

var ErrQueueFull = errors.New("queue is full")

type Queue struct {
	MaxItems int `mapstructure:"max_items"`

	mu    sync.Mutex
	items [][]byte
}

func (q *Queue) Enqueue(message []byte) error {
	// copy message to avoid external modification
	message = append([]byte(nil), message...)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.MaxItems > 0 && len(q.items) >= q.MaxItems {
		return ErrQueueFull
	}
	q.items = append(q.items, message)
	return nil
}

func (q *Queue) Dequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	message := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return message, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// NewQueue returns a new initialized Queue
func NewQueue(settings map[string]any) (*Queue, error) {
	return util.ConfigToStruct[Queue](settings)
}
