// Package session owns the PMD negotiation state machine: it dials a
// discovered sensor, locates the protocol characteristics, starts the ECG
// and ACC measurements with strictly sequential control writes, and feeds
// the notification stream through the frame decoder into the dispatcher.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markspan/PolarBLE/dispatch"
	"github.com/markspan/PolarBLE/internal/ringchan"
	"github.com/markspan/PolarBLE/pmd"
	"github.com/markspan/PolarBLE/scanner"
)

// notificationSource tags queued notifications with the characteristic
// they arrived on.
type notificationSource int

const (
	sourcePMD notificationSource = iota
	sourceHeartRate
)

// RawNotification is one undecoded payload as delivered by the transport.
// It exists only until the decode loop consumes it.
type RawNotification struct {
	Data       []byte
	ReceivedAt time.Time

	source notificationSource
}

// Options bounds the session's transport operations. The transport itself
// assumes no timeout; each negotiation step is wall-clock bounded here so a
// dead peripheral surfaces as Failed instead of a hang.
type Options struct {
	ConnectTimeout  time.Duration
	DiscoverTimeout time.Duration
	WriteTimeout    time.Duration
	// QueueSize bounds the notification queue between the BLE delivery
	// callback and the decode loop.
	QueueSize int
	// Commands selects the control point command table.
	Commands pmd.CommandTable
	// StartECG / StartACC select which measurements to negotiate. Both
	// default to on.
	StartECG bool
	StartACC bool
}

// DefaultOptions returns the session defaults.
func DefaultOptions() *Options {
	return &Options{
		ConnectTimeout:  10 * time.Second,
		DiscoverTimeout: 10 * time.Second,
		WriteTimeout:    10 * time.Second,
		QueueSize:       256,
		Commands:        pmd.DefaultCommands(),
		StartECG:        true,
		StartACC:        true,
	}
}

// Session drives one connection to one sensor. Sessions are single-shot:
// after Disconnected or Failed a new Session is needed; retry policy is the
// caller's concern.
type Session struct {
	logger     *logrus.Logger
	dispatcher *dispatch.Dispatcher
	opts       *Options
	events     *ringchan.RingChannel[StateChange]

	mu            sync.Mutex
	state         State
	link          Link
	notifications *ringchan.RingChannel[RawNotification]
	decodeDone    chan struct{}
	hrActive      bool
}

// New creates a Session that forwards decoded batches to d.
func New(d *dispatch.Dispatcher, logger *logrus.Logger, opts *Options) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Session{
		logger:     logger,
		dispatcher: d,
		opts:       opts,
		state:      StateIdle,
		events:     ringchan.New[StateChange](16),
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the stream of state transitions. The channel is bounded;
// a slow observer loses the oldest transitions, never blocks the session.
func (s *Session) Events() <-chan StateChange {
	return s.events.C()
}

// transition is the single mutation point for the session state. Invalid
// transitions are refused and logged rather than applied.
func (s *Session) transition(to State, err error) bool {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return true
	}
	if !ValidTransition(from, to) {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"from": from.String(),
			"to":   to.String(),
		}).Warn("Refusing invalid session transition")
		return false
	}
	s.state = to
	s.mu.Unlock()

	entry := s.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Session state changed")
	} else {
		entry.Info("Session state changed")
	}
	s.events.Send(StateChange{From: from, To: to, Err: err})
	return true
}

// BeginScanning records that discovery is running ahead of a connection
// attempt. The scanner itself is owned by the caller.
func (s *Session) BeginScanning() bool {
	return s.transition(StateScanning, nil)
}

// EndScanning returns the session to Idle after a scan that did not lead to
// a connection attempt.
func (s *Session) EndScanning() bool {
	return s.transition(StateIdle, nil)
}

// Connect drives the full negotiation with the peripheral: dial, service
// discovery, sequential measurement start writes, then notification
// subscription. On success the session is Streaming and decoded batches
// flow to the dispatcher until Disconnect. On failure the session is
// terminal and the returned error is a *SessionError carrying the specific
// reason.
//
// Scanning and an active session do not interleave: stop the scanner
// before calling Connect.
func (s *Session) Connect(ctx context.Context, handle scanner.PeripheralHandle) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateScanning {
		s.mu.Unlock()
		return ErrNotIdle
	}
	link := LinkFactory(s.logger)
	s.link = link
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"device":  handle.Name,
		"address": handle.Address,
	}).Info("Connecting to sensor")

	// Disconnect may run concurrently from another goroutine at any point
	// of the negotiation; a refused transition means it already tore the
	// session down, so abort instead of driving a closed link.
	if !s.transition(StateConnecting, nil) {
		_ = link.Close()
		return ErrDisconnected
	}
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	err := link.Dial(dialCtx, handle.Address)
	cancel()
	if err != nil {
		return s.fail(ReasonConnect, err)
	}

	if !s.transition(StateDiscoveringServices, nil) {
		_ = link.Close()
		return ErrDisconnected
	}
	discCtx, cancel := context.WithTimeout(ctx, s.opts.DiscoverTimeout)
	err = link.Discover(discCtx)
	cancel()
	if err != nil {
		return s.fail(ReasonProtocolMismatch, err)
	}

	if !s.transition(StateConfiguring, nil) {
		_ = link.Close()
		return ErrDisconnected
	}
	// The link permits one outstanding operation per peripheral: the ECG
	// start must be acknowledged before the ACC start is issued.
	var commands [][]byte
	if s.opts.StartECG {
		commands = append(commands, s.opts.Commands.StartECG())
	}
	if s.opts.StartACC {
		commands = append(commands, s.opts.Commands.StartACC())
	}
	for _, cmd := range commands {
		writeCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
		err = link.WriteCommand(writeCtx, cmd)
		cancel()
		if err != nil {
			if s.State() == StateDisconnected {
				return ErrDisconnected
			}
			return s.fail(ReasonConfig, err)
		}
		if s.State() != StateConfiguring {
			return ErrDisconnected
		}
	}

	// The decode loop must be draining before notifications are enabled.
	// Create the queue under the lock and only while still Configuring so
	// a concurrent Disconnect either sees it and closes it, or already
	// won and the queue is never created.
	s.mu.Lock()
	if s.state != StateConfiguring {
		s.mu.Unlock()
		return ErrDisconnected
	}
	notifications := ringchan.New[RawNotification](s.opts.QueueSize)
	done := make(chan struct{})
	s.notifications = notifications
	s.decodeDone = done
	s.mu.Unlock()
	go s.decodeLoop(notifications, done)

	// ECG and ACC multiplex onto the one data characteristic; subscribe
	// once, after both start commands succeeded.
	if err := link.Subscribe(s.handleDataNotification); err != nil {
		return s.fail(ReasonConfig, err)
	}

	if !s.transition(StateStreaming, nil) {
		return ErrDisconnected
	}
	return nil
}

// fail releases the link and moves the session to the terminal Failed
// state.
func (s *Session) fail(reason FailureReason, err error) error {
	serr := &SessionError{Reason: reason, Err: err}

	s.mu.Lock()
	link := s.link
	s.link = nil
	notifications := s.notifications
	s.notifications = nil
	done := s.decodeDone
	s.mu.Unlock()

	if link != nil {
		_ = link.Close()
	}
	if notifications != nil {
		notifications.Close()
		<-done
	}

	s.transition(StateFailed, serr)
	return serr
}

// Disconnect cancels the session. It is safe from any state, idempotent,
// and unsubscribes notifications before releasing the link so nothing
// decodes against a torn-down session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	link := s.link
	s.link = nil
	notifications := s.notifications
	s.notifications = nil
	done := s.decodeDone
	streaming := s.state == StateStreaming
	hrActive := s.hrActive
	s.hrActive = false
	s.mu.Unlock()

	if link != nil {
		if streaming {
			if hrActive {
				if err := link.UnsubscribeHeartRate(); err != nil {
					s.logger.WithError(err).Debug("Heart rate unsubscribe failed during disconnect")
				}
			}
			if err := link.Unsubscribe(); err != nil {
				s.logger.WithError(err).Debug("Unsubscribe failed during disconnect")
			}
		}
		if err := link.Close(); err != nil {
			s.logger.WithError(err).Debug("Link close failed during disconnect")
		}
	}
	if notifications != nil {
		dropped := notifications.Snapshot().Overwritten
		if dropped > 0 {
			s.logger.WithField("dropped", dropped).Warn("Notification queue overflowed during session")
		}
		notifications.Close()
		<-done
	}

	s.transition(StateDisconnected, nil)
}

// BatteryLevel reads the battery percentage on demand. It requires an
// established link but works in any non-terminal connected state.
func (s *Session) BatteryLevel() (int, error) {
	s.mu.Lock()
	link := s.link
	state := s.state
	s.mu.Unlock()

	if link == nil || state.Terminal() {
		return 0, ErrNotConnected
	}
	level, err := link.ReadBattery()
	if err != nil {
		return 0, err
	}
	return int(level), nil
}

// Attach establishes the link and discovers services without starting any
// measurement, for on-demand reads like the battery level. The session
// stays in DiscoveringServices until Disconnect.
func (s *Session) Attach(ctx context.Context, handle scanner.PeripheralHandle) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateScanning {
		s.mu.Unlock()
		return ErrNotIdle
	}
	link := LinkFactory(s.logger)
	s.link = link
	s.mu.Unlock()

	s.transition(StateConnecting, nil)
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	err := link.Dial(dialCtx, handle.Address)
	cancel()
	if err != nil {
		return s.fail(ReasonConnect, err)
	}

	s.transition(StateDiscoveringServices, nil)
	discCtx, cancel := context.WithTimeout(ctx, s.opts.DiscoverTimeout)
	err = link.Discover(discCtx)
	cancel()
	if err != nil {
		return s.fail(ReasonProtocolMismatch, err)
	}
	return nil
}

// StartHeartRate subscribes the standard heart rate measurement
// characteristic and routes decoded readings through the dispatcher as
// SignalHR. Only valid while Streaming.
func (s *Session) StartHeartRate() error {
	s.mu.Lock()
	link := s.link
	if s.state != StateStreaming || link == nil {
		s.mu.Unlock()
		return ErrNotStreaming
	}
	s.mu.Unlock()

	if err := link.SubscribeHeartRate(s.handleHeartRateNotification); err != nil {
		return err
	}
	s.mu.Lock()
	s.hrActive = true
	s.mu.Unlock()
	return nil
}

// handleDataNotification runs on the BLE delivery goroutine: copy the
// payload and queue it, nothing more.
func (s *Session) handleDataNotification(data []byte) {
	s.enqueue(data, sourcePMD)
}

func (s *Session) handleHeartRateNotification(data []byte) {
	s.enqueue(data, sourceHeartRate)
}

func (s *Session) enqueue(data []byte, src notificationSource) {
	// The transport reuses its buffer after the callback returns.
	buf := make([]byte, len(data))
	copy(buf, data)

	// Send under the lock: Disconnect nils the queue under the same lock
	// before closing it, so a send can never race the close.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifications == nil {
		return
	}
	if s.notifications.Send(RawNotification{Data: buf, ReceivedAt: time.Now(), source: src}) {
		s.logger.Debug("Notification queue full, dropped oldest")
	}
}

// decodeLoop is the single consumer of the notification queue. Batches are
// only emitted while Streaming; frames arriving in any other state are
// discarded. Decode anomalies are recoverable and never terminate the
// session.
func (s *Session) decodeLoop(notifications *ringchan.RingChannel[RawNotification], done chan struct{}) {
	defer close(done)
	for {
		n, ok := notifications.Receive()
		if !ok {
			return
		}
		if s.State() != StateStreaming {
			continue
		}

		var batch pmd.SampleBatch
		switch n.source {
		case sourceHeartRate:
			hr := pmd.DecodeHeartRate(n.Data)
			if hr.BPM == 0 {
				continue
			}
			batch = pmd.SampleBatch{
				Signal: pmd.SignalHR,
				Frames: []pmd.SampleFrame{{Signal: pmd.SignalHR, Values: []int32{int32(hr.BPM)}}},
			}
		default:
			batch = pmd.Decode(n.Data)
		}
		if batch.Empty() {
			// Unknown frame type or truncated beyond use; expected for
			// control ack echoes.
			continue
		}
		s.dispatcher.Dispatch(batch)
	}
}
