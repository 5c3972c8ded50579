package scanner_test

import (
	"context"
	"testing"
	"time"

	blelib "github.com/go-ble/ble"
	"github.com/stretchr/testify/require"
	suitelib "github.com/stretchr/testify/suite"

	"github.com/markspan/PolarBLE/internal/testutils"
	"github.com/markspan/PolarBLE/scanner"
)

type ScannerTestSuite struct {
	suitelib.Suite

	restoreFactory func() (scanner.ScanningDevice, error)
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.restoreFactory = scanner.DeviceFactory
}

func (suite *ScannerTestSuite) TearDownTest() {
	scanner.DeviceFactory = suite.restoreFactory
}

func (suite *ScannerTestSuite) withAdvertisements(advs ...blelib.Advertisement) {
	scanner.DeviceFactory = func() (scanner.ScanningDevice, error) {
		return &testutils.FakeScanningDevice{Advertisements: advs}, nil
	}
}

// collect drains handles until the deadline passes or the stream closes.
func collect(ch <-chan scanner.PeripheralHandle, wait time.Duration) []scanner.PeripheralHandle {
	var got []scanner.PeripheralHandle
	deadline := time.After(wait)
	for {
		select {
		case h, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, h)
		case <-deadline:
			return got
		}
	}
}

func polarAdv(name, addr string) blelib.Advertisement {
	return testutils.NewAdvertisementBuilder().
		WithName(name).
		WithAddress(addr).
		WithRSSI(-50).
		Build()
}

func (suite *ScannerTestSuite) TestDiscoversMatchingSensors() {
	suite.withAdvertisements(
		polarAdv("Polar H10 12345678", "AA:BB:CC:DD:EE:01"),
		polarAdv("Polar H10 87654321", "AA:BB:CC:DD:EE:02"),
	)

	s := scanner.New(nil)
	ch, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	defer s.Stop()

	got := collect(ch, 100*time.Millisecond)
	suite.Require().Len(got, 2)
	suite.Equal("AA:BB:CC:DD:EE:01", got[0].Address)
	suite.Equal("AA:BB:CC:DD:EE:02", got[1].Address)
	suite.False(got[0].FirstSeen.IsZero())
}

func (suite *ScannerTestSuite) TestDeduplicatesByAddress() {
	// Same advertisement replayed three times yields one handle.
	adv := polarAdv("Polar H10 12345678", "AA:BB:CC:DD:EE:01")
	suite.withAdvertisements(adv, adv, adv)

	s := scanner.New(nil)
	ch, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	defer s.Stop()

	got := collect(ch, 100*time.Millisecond)
	suite.Require().Len(got, 1)
	suite.Equal("AA:BB:CC:DD:EE:01", got[0].Address)
}

func (suite *ScannerTestSuite) TestFiltersByAdvertisedName() {
	suite.withAdvertisements(
		polarAdv("Polar H10 12345678", "AA:BB:CC:DD:EE:01"),
		polarAdv("FitBand Mini", "AA:BB:CC:DD:EE:02"),
		polarAdv("", "AA:BB:CC:DD:EE:03"),
	)

	s := scanner.New(nil)
	ch, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	defer s.Stop()

	got := collect(ch, 100*time.Millisecond)
	suite.Require().Len(got, 1)
	suite.Equal("Polar H10 12345678", got[0].Name)
}

func (suite *ScannerTestSuite) TestStartWhileActiveFails() {
	suite.withAdvertisements()

	s := scanner.New(nil)
	_, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	defer s.Stop()

	_, err = s.Start(context.Background(), nil)
	suite.ErrorIs(err, scanner.ErrScanActive)
}

func (suite *ScannerTestSuite) TestStopClosesStream() {
	suite.withAdvertisements(polarAdv("Polar H10 12345678", "AA:BB:CC:DD:EE:01"))

	s := scanner.New(nil)
	ch, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)

	s.Stop()
	suite.False(s.IsScanning())

	// Stream must be closed after Stop; drain whatever was buffered.
	for range ch {
	}
}

func (suite *ScannerTestSuite) TestStopIdempotent() {
	s := scanner.New(nil)

	// Safe before any scan started.
	s.Stop()
	s.Stop()

	suite.withAdvertisements()
	_, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	s.Stop()
	s.Stop()
}

func (suite *ScannerTestSuite) TestRestartForgetsSeenAddresses() {
	adv := polarAdv("Polar H10 12345678", "AA:BB:CC:DD:EE:01")
	suite.withAdvertisements(adv)

	s := scanner.New(nil)
	ch, err := s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	first := collect(ch, 100*time.Millisecond)
	s.Stop()

	ch, err = s.Start(context.Background(), nil)
	suite.Require().NoError(err)
	second := collect(ch, 100*time.Millisecond)
	s.Stop()

	suite.Len(first, 1)
	suite.Len(second, 1)
}

func TestScannerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerTestSuite))
}

func TestDefaultOptions(t *testing.T) {
	opts := scanner.DefaultOptions()
	require.Equal(t, "Polar", opts.NamePrefix)
	require.Equal(t, 64, opts.QueueSize)
}
