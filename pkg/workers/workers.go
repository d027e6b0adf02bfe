package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/storage/database/models"
	queue_models "github.com/keytune/keytune/pkg/storage/queue/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var processed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "analytics_messages_total",
	Help: "Page view messages handled by the workers",
}, []string{"result"})

type KeyTuneWorker struct {
	Config          config.Workers
	StorageServices *storage.Services

	snow  *snowflake.Node
	label string
}

func NewWorker(conf config.Workers, storageServices *storage.Services, nodeID int64) (*KeyTuneWorker, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	return &KeyTuneWorker{
		Config:          conf,
		StorageServices: storageServices,
		snow:            node,
		label:           fmt.Sprintf("%s-%d", hostname, nodeID),
	}, nil
}

func (w *KeyTuneWorker) Produce(ctx context.Context, ch chan<- []byte, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			item, ok := w.StorageServices.Queue.Dequeue()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(1 * time.Second):
				}
				continue
			}

			select {
			case ch <- item:
			case <-ctx.Done():
				// put it back for the next run
				if err := w.StorageServices.Queue.Enqueue(item); err != nil {
					log.Error().Err(err).Str("worker", w.label).Msg("Unable to requeue message")
				}
				return
			}
		}
	}
}

func (w *KeyTuneWorker) Consume(ctx context.Context, ch <-chan []byte, threadId int, wg *sync.WaitGroup) {
	log.Debug().Int("thread", threadId).Str("worker", w.label).Msg("Starting worker")
	defer wg.Done()

	for item := range ch {
		message := queue_models.PageViewMessage{}
		if err := json.Unmarshal(item, &message); err != nil {
			processed.WithLabelValues("invalid").Inc()
			log.Error().Err(err).Int("thread", threadId).Bytes("message", item).Msg("Unable to decode message")
			continue
		}

		// drain with a fresh context so a shutdown doesn't drop the tail
		if err := w.processPageView(context.WithoutCancel(ctx), message); err != nil {
			processed.WithLabelValues("error").Inc()
			log.Error().Err(err).Int("thread", threadId).Str("link_id", message.LinkID).Msg("Unable to record page view")
			continue
		}
		processed.WithLabelValues("ok").Inc()
	}
}

func (w *KeyTuneWorker) processPageView(ctx context.Context, message queue_models.PageViewMessage) error {
	view := &models.LinkAnalytics{
		ID:         w.snow.Generate().Int64(),
		LinkID:     message.LinkID,
		IPAddress:  message.IPAddress,
		UserAgent:  message.UserAgent,
		DeviceType: message.DeviceType,
		CreatedAt:  message.ViewedAt,
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}

	return w.StorageServices.Database.RecordLinkView(ctx, view)
}

// RunWorkers blocks until ctx is cancelled and every consumer has drained.
func RunWorkers(ctx context.Context, config config.Workers, storageServices *storage.Services) {
	workers, err := NewWorker(config, storageServices, config.NodeID)
	if err != nil {
		log.Error().Err(err).Msg("Unable to create workers")
		return
	}

	values := make(chan []byte)

	log.Debug().Msg("Starting Producers")
	var producerWg sync.WaitGroup

	producerWg.Add(1)
	go workers.Produce(ctx, values, &producerWg)

	log.Debug().Msg("Starting Consumers")
	var consumerWg sync.WaitGroup
	for i := 0; i < config.Count; i++ {
		consumerWg.Add(1)
		go workers.Consume(ctx, values, i, &consumerWg)
	}

	producerWg.Wait()

	log.Debug().Msg("Closing Producer")
	close(values)

	log.Debug().Msg("Closing Consumers...")
	consumerWg.Wait()
}
