// Package testutils provides BLE fakes for package tests: canned
// advertisements and a scanning device that replays them.
package testutils

import (
	"context"

	"github.com/go-ble/ble"
)

// Advertisement is a canned ble.Advertisement.
type Advertisement struct {
	name        string
	address     string
	rssi        int
	services    []ble.UUID
	connectable bool
	txPower     int
	mfrData     []byte
}

// AdvertisementBuilder builds canned advertisements for tests.
type AdvertisementBuilder struct {
	adv Advertisement
}

func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: Advertisement{connectable: true}}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.rssi = rssi
	return b
}

func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	for _, u := range uuids {
		b.adv.services = append(b.adv.services, ble.MustParse(u))
	}
	return b
}

func (b *AdvertisementBuilder) Build() ble.Advertisement {
	adv := b.adv
	return &adv
}

func (a *Advertisement) LocalName() string              { return a.name }
func (a *Advertisement) ManufacturerData() []byte       { return a.mfrData }
func (a *Advertisement) ServiceData() []ble.ServiceData { return nil }
func (a *Advertisement) Services() []ble.UUID           { return a.services }
func (a *Advertisement) OverflowService() []ble.UUID    { return nil }
func (a *Advertisement) TxPowerLevel() int              { return a.txPower }
func (a *Advertisement) Connectable() bool              { return a.connectable }
func (a *Advertisement) SolicitedService() []ble.UUID   { return nil }
func (a *Advertisement) RSSI() int                      { return a.rssi }
func (a *Advertisement) Addr() ble.Addr                 { return ble.NewAddr(a.address) }

// FakeScanningDevice replays a fixed advertisement sequence to the handler
// and then blocks until the context is cancelled, like a real adapter whose
// radio has gone quiet.
type FakeScanningDevice struct {
	Advertisements []ble.Advertisement
}

func (d *FakeScanningDevice) Scan(ctx context.Context, allowDup bool, handler ble.AdvHandler) error {
	for _, adv := range d.Advertisements {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		handler(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}
