// Package scanner discovers candidate Polar sensors by advertised name and
// streams each newly seen peripheral to the caller exactly once.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/markspan/PolarBLE/internal/bledev"
	"github.com/markspan/PolarBLE/internal/ringchan"
)

// ErrScanActive is returned by Start while a previous scan is still
// running; Stop it first.
var ErrScanActive = errors.New("scan already active")

// PeripheralHandle identifies one discovered sensor. Identity is the
// address; handles are immutable after creation and discarded when a new
// scan starts.
type PeripheralHandle struct {
	Address   string
	Name      string
	RSSI      int
	FirstSeen time.Time
}

// ScanningDevice is the minimal scanning surface of a BLE adapter.
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler blelib.AdvHandler) error
}

// DeviceFactory creates ScanningDevice instances (overridden in tests).
var DeviceFactory = func() (ScanningDevice, error) {
	return bledev.New()
}

// Options configures a scan session.
type Options struct {
	// NamePrefix filters advertisements to those whose local name contains
	// this substring.
	NamePrefix string
	// QueueSize bounds the discovery stream buffer.
	QueueSize int
}

// DefaultOptions returns the scan options for Polar sensors.
func DefaultOptions() *Options {
	return &Options{
		NamePrefix: "Polar",
		QueueSize:  64,
	}
}

// Scanner discovers sensors over BLE. The discovery table lives for one
// scan session only; restarting the scan forgets previously seen
// addresses.
type Scanner struct {
	logger *logrus.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Valid for the duration of one scan session.
	opts    *Options
	devices *hashmap.Map[string, PeripheralHandle]
	out     *ringchan.RingChannel[PeripheralHandle]
}

// New creates a Scanner. A nil logger falls back to a default logrus
// instance.
func New(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{logger: logger}
}

// Start begins scanning and returns a stream of newly discovered handles.
// The stream is unbounded in time: it stays open until Stop is called or
// ctx is done, and is closed afterwards. A second advertisement from an
// already seen address produces no element. Start fails with ErrScanActive
// while a previous scan is running.
func (s *Scanner) Start(ctx context.Context, opts *Options) (<-chan PeripheralHandle, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanActive
	}

	dev, err := DeviceFactory()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	scanCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.opts = opts
	s.devices = hashmap.New[string, PeripheralHandle]()
	s.out = ringchan.New[PeripheralHandle](opts.QueueSize)
	out := s.out
	done := s.done
	s.mu.Unlock()

	s.logger.WithField("name_prefix", opts.NamePrefix).Info("Starting BLE scan")

	go func() {
		defer close(done)
		err := dev.Scan(scanCtx, false, s.handleAdvertisement)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.WithError(err).Error("BLE scan failed")
		}

		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()

		out.Close()
		s.logger.Info("BLE scan stopped")
	}()

	return out.C(), nil
}

// Stop ends the current scan and waits for the discovery stream to close.
// It is idempotent and safe to call from any state, including before any
// scan has started.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// IsScanning reports whether a scan session is active.
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// handleAdvertisement filters by advertised name and deduplicates strictly
// by address.
func (s *Scanner) handleAdvertisement(adv blelib.Advertisement) {
	name := adv.LocalName()
	if !strings.Contains(name, s.opts.NamePrefix) {
		return
	}

	handle := PeripheralHandle{
		Address:   adv.Addr().String(),
		Name:      name,
		RSSI:      adv.RSSI(),
		FirstSeen: time.Now(),
	}
	if _, loaded := s.devices.GetOrInsert(handle.Address, handle); loaded {
		return
	}

	s.logger.WithFields(logrus.Fields{
		"device":  handle.Name,
		"address": handle.Address,
		"rssi":    handle.RSSI,
	}).Info("Discovered sensor")

	s.out.Send(handle)
}
