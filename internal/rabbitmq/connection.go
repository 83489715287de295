package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/busline/busline-go/topology"
)

// ConnectionStateListener receives connection state change notifications.
type ConnectionStateListener interface {
	OnConnected()
	OnDisconnected(err error)
}

// ConnectionManager manages the single RabbitMQ connection and channel. At
// most one of each is live at a time; a channel never outlives its
// connection. Lifecycle: absent -> connecting -> open -> (error|closed) ->
// absent, with no automatic re-dial.
type ConnectionManager struct {
	url            string
	prefetch       int
	connectTimeout time.Duration
	logger         *slog.Logger
	bindings       *topology.BindingRegistry

	mu          sync.RWMutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	isConnected bool
	done        chan struct{}

	stateListeners []ConnectionStateListener
	listenersMu    sync.RWMutex
}

// ConnectionOption configures the ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithPrefetch bounds how many unacknowledged deliveries the channel accepts
// at once. This is the only backpressure mechanism the transit layer has.
func WithPrefetch(count int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.prefetch = count
	}
}

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(timeout time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.connectTimeout = timeout
	}
}

// NewConnectionManager creates a new connection manager. The binding registry
// records every fanout binding subscribers create; Disconnect unwinds it.
func NewConnectionManager(url string, bindings *topology.BindingRegistry, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:            url,
		prefetch:       1,
		connectTimeout: 30 * time.Second,
		logger:         slog.Default(),
		bindings:       bindings,
	}

	for _, opt := range options {
		opt(cm)
	}

	if cm.bindings == nil {
		cm.bindings = topology.NewBindingRegistry()
	}

	return cm
}

// Connect establishes the connection and channel. No-op when already
// connected. A failed dial is terminal: the error is returned and no retry is
// attempted here.
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isConnected {
		return nil
	}

	connCtx, cancel := context.WithTimeout(ctx, cm.connectTimeout)
	defer cancel()

	dialed, err := dialDeadline(connCtx, func() (io.Closer, error) {
		return amqp.Dial(cm.url)
	})
	if err != nil {
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	conn := dialed.(*amqp.Connection)

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return &ConnectionError{
			Op:        "open channel",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	if err := channel.Qos(cm.prefetch, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return &ConnectionError{
			Op:        "set prefetch",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	cm.conn = conn
	cm.channel = channel
	cm.isConnected = true
	cm.done = make(chan struct{})

	// One goroutine owns the lifecycle transitions so concurrent error and
	// close notifications cannot race each other.
	go cm.watchLifecycle(
		conn.NotifyClose(make(chan *amqp.Error, 1)),
		channel.NotifyClose(make(chan *amqp.Error, 1)),
		conn.NotifyBlocked(make(chan amqp.Blocking, 1)),
		channel.NotifyReturn(make(chan amqp.Return, 1)),
		cm.done,
	)

	cm.logger.Info("connected to broker",
		"url", SanitizeURL(cm.url),
		"prefetch", cm.prefetch)

	cm.notifyConnected()

	return nil
}

// dialDeadline runs dial with ctx as the deadline. A dial that completes
// after the deadline has already expired still owns a socket; it is closed
// here so it cannot leak.
func dialDeadline(ctx context.Context, dial func() (io.Closer, error)) (io.Closer, error) {
	connChan := make(chan io.Closer)
	errChan := make(chan error, 1)

	go func() {
		conn, err := dial()
		if err != nil {
			errChan <- err
			return
		}
		select {
		case connChan <- conn:
		case <-ctx.Done():
			conn.Close()
		}
	}()

	select {
	case conn := <-connChan:
		return conn, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ErrConnectionTimeout
	}
}

// watchLifecycle consumes the broker's notification streams until the
// connection dies or Disconnect fires.
func (cm *ConnectionManager) watchLifecycle(
	connClose, chanClose chan *amqp.Error,
	blocked chan amqp.Blocking,
	returns chan amqp.Return,
	done chan struct{},
) {
	for {
		select {
		case err := <-connClose:
			cm.markDown("connection closed", err)
			return

		case err := <-chanClose:
			// A channel failure is indistinguishable from connection loss for
			// callers: the shared channel is gone either way.
			cm.markDown("channel closed", err)
			return

		case b := <-blocked:
			if b.Active {
				cm.logger.Warn("broker blocked connection", "reason", b.Reason)
			} else {
				cm.logger.Info("broker unblocked connection")
			}

		case ret := <-returns:
			cm.logger.Warn("message returned by broker",
				"exchange", ret.Exchange,
				"routingKey", ret.RoutingKey,
				"replyText", ret.ReplyText)

		case <-done:
			return
		}
	}
}

// markDown records a terminal connection state and notifies listeners.
func (cm *ConnectionManager) markDown(reason string, amqpErr *amqp.Error) {
	cm.mu.Lock()
	if !cm.isConnected {
		cm.mu.Unlock()
		return
	}
	cm.isConnected = false
	cm.conn = nil
	cm.channel = nil
	cm.mu.Unlock()

	var err error
	if amqpErr != nil {
		err = amqpErr
		cm.logger.Error(reason, "error", amqpErr)
	} else {
		cm.logger.Info(reason)
	}

	cm.notifyDisconnected(err)
}

// Channel returns the live channel, or (nil, false) when the connection is
// down. Callers must treat false as "complete as a no-op": disconnection
// mid-flight is an expected race, not an error.
func (cm *ConnectionManager) Channel() (*amqp.Channel, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.isConnected || cm.channel == nil {
		return nil, false
	}
	return cm.channel, true
}

// IsConnected returns the connection status.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isConnected
}

// Bindings returns the registry shared with subscribers.
func (cm *ConnectionManager) Bindings() *topology.BindingRegistry {
	return cm.bindings
}

// teardownChannel is the slice of the live channel Disconnect needs: teardown
// only unbinds and closes, it never declares or deletes.
type teardownChannel interface {
	QueueUnbind(name, key, exchange string, args amqp.Table) error
	Close() error
}

// Disconnect gracefully tears down the channel and connection: unbind every
// recorded binding so no further broadcast reaches this node, close the
// channel, close the connection, clear handles. Every step is best-effort;
// errors are logged and teardown continues. Queues and exchanges are never
// deleted here, other nodes may still need the messages they hold. No-op when
// already disconnected.
func (cm *ConnectionManager) Disconnect(ctx context.Context) error {
	cm.mu.Lock()

	if !cm.isConnected {
		cm.mu.Unlock()
		return nil
	}

	conn := cm.conn
	channel := cm.channel
	cm.conn = nil
	cm.channel = nil
	cm.isConnected = false
	close(cm.done)
	cm.mu.Unlock()

	cm.unwindChannel(channel)

	if err := conn.Close(); err != nil {
		cm.logger.Warn("failed to close connection", "error", err)
	}

	cm.logger.Info("disconnected from broker", "url", SanitizeURL(cm.url))

	cm.notifyDisconnected(nil)

	return nil
}

// unwindChannel unbinds every drained binding exactly once, then closes the
// channel.
func (cm *ConnectionManager) unwindChannel(channel teardownChannel) {
	for _, b := range cm.bindings.Drain() {
		if err := channel.QueueUnbind(b.Queue, b.RoutingKey, b.Exchange, nil); err != nil {
			cm.logger.Warn("failed to unbind queue",
				"queue", b.Queue,
				"exchange", b.Exchange,
				"error", err)
		}
	}

	if err := channel.Close(); err != nil {
		cm.logger.Warn("failed to close channel", "error", err)
	}
}

// AddStateListener adds a connection state listener.
func (cm *ConnectionManager) AddStateListener(listener ConnectionStateListener) {
	cm.listenersMu.Lock()
	defer cm.listenersMu.Unlock()
	cm.stateListeners = append(cm.stateListeners, listener)
}

func (cm *ConnectionManager) notifyConnected() {
	cm.listenersMu.RLock()
	defer cm.listenersMu.RUnlock()

	for _, listener := range cm.stateListeners {
		go listener.OnConnected()
	}
}

func (cm *ConnectionManager) notifyDisconnected(err error) {
	cm.listenersMu.RLock()
	defer cm.listenersMu.RUnlock()

	for _, listener := range cm.stateListeners {
		go listener.OnDisconnected(err)
	}
}
