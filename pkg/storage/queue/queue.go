package queue

import (
	"fmt"

	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage/queue/memory"
	"github.com/keytune/keytune/pkg/storage/queue/sqs"
)

type Queue interface {
	Enqueue(value []byte) error
	Dequeue() ([]byte, bool)
}

func NewQueue(conf config.Queue) (Queue, error) {
	switch conf.Type {
	case "memory":
		return memory.NewQueue(conf.Settings)
	case "sqs":
		return sqs.NewQueue(conf.Settings)
	}

	return nil, fmt.Errorf("unsupported queue: %q", conf.Type)
}
