package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
)

// Conn is the write surface of a push connection. The fiber websocket conn
// satisfies it; tests substitute an in-memory fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Listener is one long-lived push connection. A listener may belong to any
// number of channels; when its connection dies it is removed from all of
// them exactly once.
type Listener struct {
	ID string

	conn   Conn
	mu     sync.Mutex // serializes writes; websocket conns allow one writer
	ctx    context.Context
	cancel context.CancelFunc
}

func NewListener(conn Conn) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		ID:     uuid.New().String(),
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Done is closed once the listener has been dropped from the broadcaster.
func (l *Listener) Done() <-chan struct{} {
	return l.ctx.Done()
}

func (l *Listener) write(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// readyEvent confirms a subscription on the wire.
type readyEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// ChannelKey derives the channel identifier for a room and target language.
func ChannelKey(roomID, language string) string {
	if language == "" {
		language = "unknown"
	}
	return roomID + ":" + strings.ToLower(language)
}

// Broadcaster is the process-scoped publish/subscribe registry. Channels
// exist only while they have listeners; publishing to an empty channel keeps
// no state around.
type Broadcaster struct {
	pingInterval time.Duration

	mu         sync.Mutex
	channels   map[string]map[*Listener]struct{}
	membership map[*Listener]map[string]struct{}
}

func New(pingInterval time.Duration) *Broadcaster {
	return &Broadcaster{
		pingInterval: pingInterval,
		channels:     make(map[string]map[*Listener]struct{}),
		membership:   make(map[*Listener]map[string]struct{}),
	}
}

// Subscribe registers the listener under the channel, confirms with a ready
// event, and starts the keep-alive pinger the first time the listener is
// seen.
func (b *Broadcaster) Subscribe(channel string, l *Listener) error {
	b.mu.Lock()
	set, ok := b.channels[channel]
	if !ok {
		set = make(map[*Listener]struct{})
		b.channels[channel] = set
	}
	set[l] = struct{}{}

	chans, known := b.membership[l]
	if !known {
		chans = make(map[string]struct{})
		b.membership[l] = chans
	}
	chans[channel] = struct{}{}
	b.mu.Unlock()

	if !known {
		go b.keepAlive(l)
	}

	data, err := json.Marshal(readyEvent{Type: "ready", Channel: channel})
	if err != nil {
		return err
	}
	if err := l.write(gws.TextMessage, data); err != nil {
		b.Drop(l)
		return err
	}
	return nil
}

// Unsubscribe removes the listener from one channel. Calling it twice, or
// for a listener that was never subscribed, is a no-op.
func (b *Broadcaster) Unsubscribe(channel string, l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLocked(channel, l)
	if chans, ok := b.membership[l]; ok {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(b.membership, l)
			l.cancel()
		}
	}
}

// Drop removes the listener from every channel it belongs to and stops its
// keep-alive. Safe to call more than once; the connection-close path always
// runs it.
func (b *Broadcaster) Drop(l *Listener) {
	b.mu.Lock()
	for channel := range b.membership[l] {
		b.removeLocked(channel, l)
	}
	delete(b.membership, l)
	b.mu.Unlock()

	l.cancel()
}

// removeLocked deletes the listener from one channel set and drops the
// channel entry when the set empties. Caller holds b.mu.
func (b *Broadcaster) removeLocked(channel string, l *Listener) {
	set, ok := b.channels[channel]
	if !ok {
		return
	}
	delete(set, l)
	if len(set) == 0 {
		delete(b.channels, channel)
	}
}

// Publish encodes the payload once and writes it to every listener on the
// channel. Delivery is fire-and-forget: a failed write drops that listener
// and moves on to the rest.
func (b *Broadcaster) Publish(channel string, payload interface{}) {
	b.mu.Lock()
	set, ok := b.channels[channel]
	if !ok || len(set) == 0 {
		b.mu.Unlock()
		return
	}
	listeners := make([]*Listener, 0, len(set))
	for l := range set {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("broadcast: failed to encode event for %s: %v", channel, err)
		return
	}

	for _, l := range listeners {
		if err := l.write(gws.TextMessage, data); err != nil {
			log.Printf("broadcast: dropping listener %s: %v", l.ID, err)
			b.Drop(l)
		}
	}
}

// Listeners reports how many listeners a channel currently has.
func (b *Broadcaster) Listeners(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[channel])
}

// Channels reports how many channels currently exist.
func (b *Broadcaster) Channels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

// keepAlive pings the listener on a ticker so idle connections survive
// intermediary proxies. It exits when the listener is dropped.
func (b *Broadcaster) keepAlive(l *Listener) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.Done():
			return
		case <-ticker.C:
			if err := l.write(gws.PingMessage, nil); err != nil {
				b.Drop(l)
				return
			}
		}
	}
}
