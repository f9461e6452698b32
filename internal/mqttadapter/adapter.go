// Package mqttadapter manages a pool of MQTT broker connections, decodes
// uplink payloads into typed metrics, and dispatches downlink commands,
// following the banner-section style and zap sugared-logging idiom of the
// teacher's device-management service.
package mqttadapter

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/neomind/edge/internal/eventbus"
	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/neoerr"
	"github.com/neomind/edge/internal/timeseries"
)

const (
	maxConsecutiveErrors = 5
	defaultKeepAlive     = 60 * time.Second
	defaultMaxPacketSize = 10 * 1024 * 1024 // 10 MiB

	discoveryPrefix = "discovery"
)

// ============================================================
// Broker
// ============================================================

// broker holds the per-connection state for one MQTT broker. It lives
// behind its own mutex so operations on broker A never serialize with
// broker B beyond the pool map lookup.
type broker struct {
	id     string
	host   string
	port   int
	client mqtt.Client

	mu         sync.Mutex
	topics     map[string]bool
	errCount   int
	running    bool
	cancelLoop context.CancelFunc
}

// ============================================================
// Adapter
// ============================================================

// Adapter owns the broker pool and routes decoded metrics into the event
// bus and time-series store.
type Adapter struct {
	mu      sync.RWMutex
	brokers map[string]*broker

	customPatterns []string

	registry   DeviceRegistry
	bus        *eventbus.Bus
	ts         *timeseries.Store
	transforms TransformSink

	log *zap.SugaredLogger
}

// DeviceRegistry is the slice of the mdl.Registry the adapter needs;
// declared locally to avoid a hard import-cycle dependency direction.
type DeviceRegistry interface {
	GetDevice(id string) (*mdl.DeviceInstance, error)
	RegisterDevice(cfg mdl.DeviceConfig) (*mdl.DeviceInstance, error)
	UpdateInstance(id string, fn func(*mdl.DeviceInstance)) error
	GetTemplate(id string) (mdl.DeviceTypeTemplate, error)
	MetricDataType(deviceID, metric string) (mdl.DataType, bool)
}

// TransformSink receives every decoded payload for further derived-metric
// processing; the transform engine implements this.
type TransformSink interface {
	ProcessDeviceData(deviceID, deviceType string, raw []byte)
}

// New constructs an adapter with an empty broker pool.
func New(registry DeviceRegistry, bus *eventbus.Bus, ts *timeseries.Store, transforms TransformSink, log *zap.SugaredLogger) *Adapter {
	return &Adapter{
		brokers:    map[string]*broker{},
		registry:   registry,
		bus:        bus,
		ts:         ts,
		transforms: transforms,
		log:        log,
	}
}

// AddBroker opens a connection to host:port and starts its event loop. An
// id collision is a Configuration error.
func (a *Adapter) AddBroker(id, host string, port int, user, pass string) error {
	a.mu.Lock()
	if _, exists := a.brokers[id]; exists {
		a.mu.Unlock()
		return neoerr.Configuration("broker id " + id + " already in pool")
	}
	a.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(host + ":" + itoa(port))
	opts.SetClientID("neomind-" + id)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetAutoReconnect(false) // reconnection is driven by our own loop, not the library's
	opts.SetConnectTimeout(10 * time.Second)
	if user != "" {
		opts.SetUsername(user)
		opts.SetPassword(pass)
	}

	b := &broker{id: id, host: host, port: port, topics: map[string]bool{}}
	opts.SetDefaultPublishHandler(a.messageHandler(b))
	b.client = mqtt.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return neoerr.Network("connect to broker "+id, context.DeadlineExceeded)
	}
	if err := token.Error(); err != nil {
		return neoerr.Network("connect to broker "+id, err)
	}

	a.mu.Lock()
	a.brokers[id] = b
	patterns := append([]string{topicUplinkPattern, topicDownlinkPattern}, a.customPatterns...)
	a.mu.Unlock()

	for _, p := range patterns {
		if err := a.subscribeOnBroker(b, p); err != nil {
			a.log.Warnw("initial subscribe failed", "broker_id", id, "topic", p, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.running = true
	b.cancelLoop = cancel
	b.mu.Unlock()

	go a.brokerLoop(ctx, b)

	a.log.Infow("broker added", "broker_id", id, "host", host, "port", port)
	return nil
}

// brokerLoop is the broker's long-lived cooperative task. paho's client is
// callback-driven rather than poll-based, so the loop's "poll" is a
// periodic connection health check; on failure it sleeps 1s and retries,
// terminating after max_errors consecutive failures.
func (a *Adapter) brokerLoop(ctx context.Context, b *broker) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.removeFromPool(b.id)
			return
		case <-ticker.C:
			b.mu.Lock()
			running := b.running
			b.mu.Unlock()
			if !running {
				a.removeFromPool(b.id)
				return
			}

			if b.client.IsConnectionOpen() {
				b.mu.Lock()
				b.errCount = 0
				b.mu.Unlock()
				continue
			}

			token := b.client.Connect()
			if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
				b.mu.Lock()
				b.errCount++
				exceeded := b.errCount >= maxConsecutiveErrors
				b.mu.Unlock()
				if exceeded {
					a.log.Warnw("broker exceeded max consecutive errors, removing", "broker_id", b.id)
					a.removeFromPool(b.id)
					return
				}
				time.Sleep(time.Second)
			}
		}
	}
}

func (a *Adapter) removeFromPool(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.brokers, id)
}

// RemoveBroker stops the broker's loop cooperatively; the loop removes
// itself from the pool when it exits.
func (a *Adapter) RemoveBroker(id string) error {
	a.mu.RLock()
	b, ok := a.brokers[id]
	a.mu.RUnlock()
	if !ok {
		return neoerr.NotFoundf("broker %q not in pool", id)
	}

	b.mu.Lock()
	b.running = false
	cancel := b.cancelLoop
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.client.Disconnect(250)
	return nil
}

// ListBrokers returns every broker id currently in the pool.
func (a *Adapter) ListBrokers() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.brokers))
	for id := range a.brokers {
		out = append(out, id)
	}
	return out
}

// ConnectionStatus reports Connected iff the pool is non-empty.
func (a *Adapter) ConnectionStatus() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.brokers) == 0 {
		return "Disconnected"
	}
	return "Connected"
}

// SubscribeTopic subscribes every broker in the pool to topic, tracking
// per-broker subscriptions to avoid re-subscribing.
func (a *Adapter) SubscribeTopic(topic string) error {
	a.mu.Lock()
	a.customPatterns = append(a.customPatterns, topic)
	brokers := make([]*broker, 0, len(a.brokers))
	for _, b := range a.brokers {
		brokers = append(brokers, b)
	}
	a.mu.Unlock()

	var lastErr error
	for _, b := range brokers {
		if err := a.subscribeOnBroker(b, topic); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// UnsubscribeTopic unsubscribes every broker in the pool from topic.
func (a *Adapter) UnsubscribeTopic(topic string) error {
	a.mu.Lock()
	brokers := make([]*broker, 0, len(a.brokers))
	for _, b := range a.brokers {
		brokers = append(brokers, b)
	}
	a.mu.Unlock()

	var lastErr error
	for _, b := range brokers {
		token := b.client.Unsubscribe(topic)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			lastErr = token.Error()
			continue
		}
		b.mu.Lock()
		delete(b.topics, topic)
		b.mu.Unlock()
	}
	return lastErr
}

func (a *Adapter) subscribeOnBroker(b *broker, topic string) error {
	b.mu.Lock()
	if b.topics[topic] {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	token := b.client.Subscribe(topic, 1, a.messageHandler(b))
	if !token.WaitTimeout(5 * time.Second) {
		return neoerr.Network("subscribe "+topic, context.DeadlineExceeded)
	}
	if err := token.Error(); err != nil {
		return neoerr.Network("subscribe "+topic, err)
	}

	b.mu.Lock()
	b.topics[topic] = true
	b.mu.Unlock()
	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
