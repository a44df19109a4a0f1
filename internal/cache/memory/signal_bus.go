package memory

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/avelinor/wagerbot/internal/domain"
)

// SignalBus implements domain.SignalBus with in-process channels and an
// append-only stream slice per stream name.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte // pattern -> subscriber channels
	streams map[string][]domain.StreamMessage
	nextID  int64
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		nextID:  1,
	}
}

// Publish delivers the payload to every subscriber whose pattern matches the
// channel. Slow subscribers drop messages rather than block the publisher.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for pattern, chans := range sb.subs {
		if !channelMatches(pattern, channel) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to channels matching the
// given pattern (glob-style, as with Redis PSUBSCRIBE). The subscription ends
// when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	sb.mu.Lock()
	sb.subs[channel] = append(sb.subs[channel], ch)
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		defer sb.mu.Unlock()
		chans := sb.subs[channel]
		for i, c := range chans {
			if c == ch {
				sb.subs[channel] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func channelMatches(pattern, channel string) bool {
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// StreamAppend appends a payload to the named stream.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.streams[stream] = append(sb.streams[stream], domain.StreamMessage{
		ID:      fmt.Sprintf("%d-0", sb.nextID),
		Payload: payload,
	})
	sb.nextID++
	return nil
}

// StreamRead returns up to count messages after lastID. Use "0" or "0-0" to
// read from the beginning.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	msgs := sb.streams[stream]
	start := 0
	if lastID != "0" && lastID != "0-0" && lastID != "" {
		for i, m := range msgs {
			if m.ID == lastID {
				start = i + 1
				break
			}
		}
	}

	var out []domain.StreamMessage
	for _, m := range msgs[start:] {
		if count > 0 && len(out) >= count {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
