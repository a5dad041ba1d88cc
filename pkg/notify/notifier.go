package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultQueueSize bounds the number of pending notices.
const DefaultQueueSize = 32

// Config configures a Notifier.
type Config struct {
	// Device names the feeder in topics and payloads.
	Device string

	// TopicPrefix is prepended to every topic (default "fishfeeder").
	TopicPrefix string

	QueueSize int
	Logger    *slog.Logger
	Now       func() time.Time
}

type outgoing struct {
	topic    string
	payload  []byte
	retained bool
}

// Notifier queues notices and publishes them from Run.
type Notifier struct {
	pub    Publisher
	config Config
	logger *slog.Logger
	queue  chan outgoing

	mu        sync.Mutex
	published uint64
	dropped   uint64
	failed    uint64
}

// New creates a Notifier publishing through pub.
func New(pub Publisher, config Config) *Notifier {
	if config.TopicPrefix == "" {
		config.TopicPrefix = "fishfeeder"
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Notifier{
		pub:    pub,
		config: config,
		logger: config.Logger,
		queue:  make(chan outgoing, config.QueueSize),
	}
}

// Topic returns the full topic for suffix.
func (n *Notifier) Topic(suffix string) string {
	return strings.Join([]string{strings.TrimSuffix(n.config.TopicPrefix, "/"), n.config.Device, suffix}, "/")
}

// StatusTopic returns the topic carrying online/offline state. It is used
// as the MQTT will topic.
func StatusTopic(prefix, device string) string {
	if prefix == "" {
		prefix = "fishfeeder"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + device + "/" + TopicStatus
}

// Feeding queues a feeding notice.
func (n *Notifier) Feeding(notice FeedingNotice) {
	notice.Device = n.config.Device
	if notice.At.IsZero() {
		notice.At = n.config.Now()
	}
	n.enqueue(TopicFeeding, notice, false)
}

// ScheduleChanged queues a schedule notice.
func (n *Notifier) ScheduleChanged(notice ScheduleNotice) {
	notice.Device = n.config.Device
	if notice.At.IsZero() {
		notice.At = n.config.Now()
	}
	n.enqueue(TopicSchedule, notice, false)
}

func (n *Notifier) enqueue(suffix string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.logger.Error("encode notice", "error", err)
		return
	}
	n.push(outgoing{topic: n.Topic(suffix), payload: payload, retained: retained})
}

func (n *Notifier) push(msg outgoing) {
	select {
	case n.queue <- msg:
	default:
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
		n.logger.Debug("notice dropped", "topic", msg.topic)
	}
}

// Run publishes queued notices until ctx is done. It announces the
// device online on start and offline on exit.
func (n *Notifier) Run(ctx context.Context) {
	n.publish(outgoing{topic: n.Topic(TopicStatus), payload: []byte(StatusOnline), retained: true})
	for {
		select {
		case <-ctx.Done():
			n.drain()
			n.publish(outgoing{topic: n.Topic(TopicStatus), payload: []byte(StatusOffline), retained: true})
			return
		case msg := <-n.queue:
			n.publish(msg)
		}
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case msg := <-n.queue:
			n.publish(msg)
		default:
			return
		}
	}
}

func (n *Notifier) publish(msg outgoing) {
	err := n.pub.Publish(msg.topic, msg.payload, msg.retained)
	n.mu.Lock()
	if err != nil {
		n.failed++
	} else {
		n.published++
	}
	n.mu.Unlock()
	if err != nil {
		n.logger.Warn("publish failed", "topic", msg.topic, "error", err)
	}
}

// Stats returns publish counters.
func (n *Notifier) Stats() (published, dropped, failed uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.published, n.dropped, n.failed
}

// Connected reports whether the publisher has a broker connection.
func (n *Notifier) Connected() bool {
	return n.pub.Connected()
}
