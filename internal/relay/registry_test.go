package relay

import (
	"errors"
	"sync"
	"testing"

	"messenger-service/internal/models"
)

type fakeChannel struct {
	mu       sync.Mutex
	events   []models.Event
	failSend bool
	closed   bool
}

func (f *fakeChannel) Send(event models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("broken pipe")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) delivered() []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Event(nil), f.events...)
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	registry := NewRegistry()
	ch := &fakeChannel{}

	registry.Register(1, ch, ConnInfo{UserID: 1})
	if got := len(registry.ChannelsFor(1)); got != 1 {
		t.Fatalf("expected 1 channel, got %d", got)
	}

	registry.Unregister(1, ch)
	if got := len(registry.ChannelsFor(1)); got != 0 {
		t.Fatalf("expected no channels, got %d", got)
	}
}

func TestRegistryUnregisterTwiceIsNoop(t *testing.T) {
	registry := NewRegistry()
	ch := &fakeChannel{}

	registry.Register(1, ch, ConnInfo{UserID: 1})
	registry.Unregister(1, ch)
	registry.Unregister(1, ch)

	if got := len(registry.ChannelsFor(1)); got != 0 {
		t.Fatalf("expected no channels, got %d", got)
	}
}

func TestRegistryUnregisterUnknownChannelIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Unregister(42, &fakeChannel{})
}

func TestRegistryMultipleChannelsPerIdentity(t *testing.T) {
	registry := NewRegistry()
	phone := &fakeChannel{}
	laptop := &fakeChannel{}

	registry.Register(1, phone, ConnInfo{UserID: 1, DeviceID: "phone"})
	registry.Register(1, laptop, ConnInfo{UserID: 1, DeviceID: "laptop"})

	if got := len(registry.ChannelsFor(1)); got != 2 {
		t.Fatalf("expected 2 channels, got %d", got)
	}

	registry.Unregister(1, phone)
	if got := len(registry.ChannelsFor(1)); got != 1 {
		t.Fatalf("expected 1 channel after unregister, got %d", got)
	}
}

func TestRegistryChannelsForUnknownIdentityIsEmpty(t *testing.T) {
	registry := NewRegistry()
	if got := len(registry.ChannelsFor(99)); got != 0 {
		t.Fatalf("expected no channels for unknown identity, got %d", got)
	}
}

func TestRegistryInfo(t *testing.T) {
	registry := NewRegistry()
	ch := &fakeChannel{}

	if _, ok := registry.Info(1, ch); ok {
		t.Fatalf("expected no info before register")
	}

	registry.Register(1, ch, ConnInfo{UserID: 1, ConnID: "abc"})
	info, ok := registry.Info(1, ch)
	if !ok || info.ConnID != "abc" {
		t.Fatalf("expected registered info, got %+v ok=%v", info, ok)
	}
}
