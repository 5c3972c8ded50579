package session

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/markspan/PolarBLE/internal/bledev"
	"github.com/markspan/PolarBLE/pmd"
)

// Link is the transport surface the session drives. The production
// implementation sits on go-ble; tests substitute a fake through
// LinkFactory.
type Link interface {
	// Dial opens the transport link to the peripheral at addr.
	Dial(ctx context.Context, addr string) error
	// Discover enumerates services and locates the PMD control point and
	// data characteristics plus the optional battery and heart rate ones.
	// A missing required characteristic yields ErrCharacteristicMissing.
	Discover(ctx context.Context) error
	// WriteCommand writes one acknowledged command to the control point.
	// The link permits a single outstanding operation per peripheral, so
	// callers serialize writes.
	WriteCommand(ctx context.Context, payload []byte) error
	// Subscribe enables data characteristic notifications. fn runs on the
	// delivery goroutine and must not block.
	Subscribe(fn func([]byte)) error
	// Unsubscribe disables data notifications.
	Unsubscribe() error
	// SubscribeHeartRate enables standard heart rate notifications.
	SubscribeHeartRate(fn func([]byte)) error
	// UnsubscribeHeartRate disables heart rate notifications.
	UnsubscribeHeartRate() error
	// ReadBattery reads the battery level percentage.
	ReadBattery() (byte, error)
	// Close releases the link. Safe to call more than once.
	Close() error
}

// LinkFactory creates the transport for a new session (overridden in
// tests).
var LinkFactory = func(logger *logrus.Logger) Link {
	return &bleLink{logger: logger}
}

// bleLink implements Link on go-ble.
type bleLink struct {
	logger *logrus.Logger

	client  ble.Client
	control *ble.Characteristic
	data    *ble.Characteristic
	battery *ble.Characteristic
	hr      *ble.Characteristic
}

func (l *bleLink) Dial(ctx context.Context, addr string) error {
	dev, err := bledev.New()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	client, err := ble.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	l.client = client
	return nil
}

func (l *bleLink) Discover(ctx context.Context) error {
	type result struct {
		profile *ble.Profile
		err     error
	}
	resc := make(chan result, 1)
	go func() {
		p, err := l.client.DiscoverProfile(true)
		resc <- result{p, err}
	}()

	var profile *ble.Profile
	select {
	case res := <-resc:
		if res.err != nil {
			return fmt.Errorf("failed to discover profile: %w", res.err)
		}
		profile = res.profile
	case <-ctx.Done():
		return ctx.Err()
	}

	controlUUID := ble.MustParse(pmd.ControlPointUUID)
	dataUUID := ble.MustParse(pmd.DataUUID)
	batteryUUID := ble.MustParse(pmd.BatteryLevelUUID)
	hrUUID := ble.MustParse(pmd.HeartRateMeasurementUUID)

	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			switch {
			case char.UUID.Equal(controlUUID):
				l.control = char
			case char.UUID.Equal(dataUUID):
				l.data = char
			case char.UUID.Equal(batteryUUID):
				l.battery = char
			case char.UUID.Equal(hrUUID):
				l.hr = char
			}
		}
	}

	if l.control == nil {
		return fmt.Errorf("%w: PMD control point %s", ErrCharacteristicMissing, pmd.ControlPointUUID)
	}
	if l.data == nil {
		return fmt.Errorf("%w: PMD data %s", ErrCharacteristicMissing, pmd.DataUUID)
	}

	l.logger.WithFields(logrus.Fields{
		"battery":    l.battery != nil,
		"heart_rate": l.hr != nil,
	}).Debug("PMD characteristics resolved")
	return nil
}

func (l *bleLink) WriteCommand(ctx context.Context, payload []byte) error {
	// go-ble blocks until the ATT response; run it aside so the deadline
	// holds even if the peripheral never acknowledges.
	errc := make(chan error, 1)
	go func() {
		errc <- l.client.WriteCharacteristic(l.control, payload, false)
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("control point write rejected: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("control point write unacknowledged: %w", ctx.Err())
	}
}

func (l *bleLink) Subscribe(fn func([]byte)) error {
	return l.client.Subscribe(l.data, false, fn)
}

func (l *bleLink) Unsubscribe() error {
	return l.client.Unsubscribe(l.data, false)
}

func (l *bleLink) SubscribeHeartRate(fn func([]byte)) error {
	if l.hr == nil {
		return fmt.Errorf("%w: heart rate measurement %s", ErrCharacteristicMissing, pmd.HeartRateMeasurementUUID)
	}
	return l.client.Subscribe(l.hr, false, fn)
}

func (l *bleLink) UnsubscribeHeartRate() error {
	if l.hr == nil {
		return nil
	}
	return l.client.Unsubscribe(l.hr, false)
}

func (l *bleLink) ReadBattery() (byte, error) {
	if l.battery == nil {
		return 0, fmt.Errorf("%w: battery level %s", ErrCharacteristicMissing, pmd.BatteryLevelUUID)
	}
	data, err := l.client.ReadCharacteristic(l.battery)
	if err != nil {
		return 0, fmt.Errorf("failed to read battery level: %w", err)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty battery level response")
	}
	return data[0], nil
}

func (l *bleLink) Close() error {
	if l.client == nil {
		return nil
	}
	client := l.client
	l.client = nil
	return client.CancelConnection()
}
