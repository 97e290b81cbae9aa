package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/krishanu7/rps-backend/internal/match"
	wsPkg "github.com/krishanu7/rps-backend/pkg/websocket"
)

const (
	queueSize       = 256
	snapshotTimeout = 5 * time.Second
)

// SnapshotSource loads the current state of a match.
type SnapshotSource interface {
	GetState(ctx context.Context, matchID string) (match.Snapshot, error)
}

// StateMessage is what subscribers receive on every change.
type StateMessage struct {
	Type    string         `json:"type"`
	MatchID string         `json:"match_id"`
	State   match.Snapshot `json:"state"`
}

// Broadcaster pushes fresh snapshots to subscribers from a pool of workers.
// A match id always hashes to the same worker, so the snapshots of one match
// go out in the order their notifications arrived.
type Broadcaster struct {
	hub    *wsPkg.Hub
	source SnapshotSource
	queues []chan string
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewBroadcaster(hub *wsPkg.Hub, source SnapshotSource, workers int) *Broadcaster {
	if workers < 1 {
		workers = 1
	}
	b := &Broadcaster{
		hub:    hub,
		source: source,
		queues: make([]chan string, workers),
		done:   make(chan struct{}),
	}
	for i := range b.queues {
		b.queues[i] = make(chan string, queueSize)
	}
	return b
}

func (b *Broadcaster) Start() {
	log.Printf("Broadcaster starting with %d workers...", len(b.queues))
	for _, q := range b.queues {
		b.wg.Add(1)
		go b.run(q)
	}
}

// Stop ends the workers once their queued jobs are done.
func (b *Broadcaster) Stop() {
	b.once.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

// Notify schedules a snapshot push for matchID and returns immediately.
func (b *Broadcaster) Notify(matchID string) {
	q := b.queues[xxhash.Sum64String(matchID)%uint64(len(b.queues))]
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case q <- matchID:
	default:
		// Queue is full; hand off so the caller never waits on delivery.
		go func() {
			select {
			case q <- matchID:
			case <-b.done:
			}
		}()
	}
}

func (b *Broadcaster) run(q chan string) {
	defer b.wg.Done()
	for {
		select {
		case matchID := <-q:
			b.deliver(matchID)
		case <-b.done:
			for {
				select {
				case matchID := <-q:
					b.deliver(matchID)
				default:
					return
				}
			}
		}
	}
}

func (b *Broadcaster) deliver(matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := b.source.GetState(ctx, matchID)
	if errors.Is(err, match.ErrNotFound) {
		b.hub.CloseMatch(matchID)
		return
	}
	if err != nil {
		log.Printf("Failed to load snapshot for match %s: %v", matchID, err)
		return
	}

	data, err := json.Marshal(StateMessage{Type: "state", MatchID: matchID, State: snap})
	if err != nil {
		log.Printf("Failed to marshal snapshot for match %s: %v", matchID, err)
		return
	}
	b.hub.Broadcast(matchID, data)

	// The final snapshot is queued ahead of the close, so clients still see it.
	if !snap.IsActive {
		b.hub.CloseMatch(matchID)
	}
}
