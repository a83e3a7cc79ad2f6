package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// EventType enumerates the typed change notifications the Store can emit.
type EventType string

const (
	EventRoundUpdate        EventType = "round_update"
	EventParticipantsUpdate EventType = "participants_update"
	EventHistoryUpdate      EventType = "history_update"
	EventLiveFeed           EventType = "live_feed"
	EventConfigUpdate       EventType = "config_update"
	EventBlockchainEvent    EventType = "blockchain_event"
)

// Payload is whatever a listener receives for a given EventType: either a
// serialized struct or nil (e.g. round_update when there is no active round).
type Payload = interface{}

// listener is one registered subscriber's private, bounded mailbox. A slow
// or stalled listener can never block the Store's mutators or any other
// listener (§5 concurrency model) — when the mailbox is full, the oldest
// pending payload is dropped and a warning is logged.
type listener struct {
	eventType EventType
	ch        chan Payload
}

type listenerHub struct {
	mu        sync.Mutex
	listeners map[EventType][]*listener
}

func newListenerHub() *listenerHub {
	return &listenerHub{listeners: make(map[EventType][]*listener)}
}

// AddListener registers a new subscriber for eventType and returns a
// receive-only channel of its payloads. bufSize bounds the mailbox.
func (h *listenerHub) AddListener(eventType EventType, bufSize int) <-chan Payload {
	if bufSize < 1 {
		bufSize = 1
	}
	l := &listener{eventType: eventType, ch: make(chan Payload, bufSize)}
	h.mu.Lock()
	h.listeners[eventType] = append(h.listeners[eventType], l)
	h.mu.Unlock()
	return l.ch
}

// emit delivers payload to every listener registered for eventType, in
// registration order, preserving per-event_type commit order. It must be
// called outside of the Store's data lock.
func (h *listenerHub) emit(eventType EventType, payload Payload) {
	h.mu.Lock()
	ls := append([]*listener(nil), h.listeners[eventType]...)
	h.mu.Unlock()

	for _, l := range ls {
		select {
		case l.ch <- payload:
		default:
			// Mailbox full: drop the oldest pending entry to make room
			// rather than block the emitter or any sibling listener.
			select {
			case <-l.ch:
				log.Warn("store: dropped oldest listener payload, mailbox full", "event_type", eventType)
			default:
			}
			select {
			case l.ch <- payload:
			default:
				log.Warn("store: dropped listener payload, mailbox full", "event_type", eventType)
			}
		}
	}
}
