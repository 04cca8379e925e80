package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/relay"
	"messenger-service/internal/repositories"
)

type fakeChannel struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakeChannel) Send(event models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) delivered() []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Event(nil), f.events...)
}

func newTestHandler(store *mocks.MessageRepositoryMock) (*Handler, *relay.Registry) {
	registry := relay.NewRegistry()
	r := relay.NewRelay(store, registry)
	return NewHandler(r, new(mocks.AuthClientMock)), registry
}

func TestHandleFrameRelaysMessage(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	handler, registry := newTestHandler(store)

	submitter := &fakeChannel{}
	registry.Register(1, submitter, relay.ConnInfo{UserID: 1, ConnectedAt: time.Now()})

	now := time.Now()
	stored := models.Message{ID: 5, SenderID: 1, ReceiverID: 2, Body: "hi", Kind: "text", CreatedAt: now, UpdatedAt: now}
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "").Return(stored, nil).Once()

	handler.handleFrame(1, submitter, []byte(`{"receiver":2,"message":"hi"}`))

	events := submitter.delivered()
	require.Len(t, events, 1)
	require.Equal(t, models.EventMessage, events[0].Type)
	require.Equal(t, stored, *events[0].Message)
	store.AssertExpectations(t)
}

func TestHandleFrameAcceptsMatchingSenderClaim(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	handler, _ := newTestHandler(store)

	submitter := &fakeChannel{}
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "text").Return(models.Message{ID: 1}, nil).Once()

	handler.handleFrame(1, submitter, []byte(`{"sender":1,"receiver":2,"message":"hi","type":"text"}`))
	store.AssertExpectations(t)
}

func TestHandleFrameRejectsSenderMismatch(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	handler, _ := newTestHandler(store)

	submitter := &fakeChannel{}
	handler.handleFrame(1, submitter, []byte(`{"sender":9,"receiver":2,"message":"hi"}`))

	events := submitter.delivered()
	require.Len(t, events, 1)
	require.Equal(t, models.EventError, events[0].Type)
	require.Equal(t, models.CodeForbidden, events[0].Code)
	store.AssertNotCalled(t, "Append")
}

func TestHandleFrameRejectsMalformedFrame(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	handler, _ := newTestHandler(store)

	submitter := &fakeChannel{}
	handler.handleFrame(1, submitter, []byte(`{not json`))

	events := submitter.delivered()
	require.Len(t, events, 1)
	require.Equal(t, models.CodeBadFrame, events[0].Code)
	store.AssertNotCalled(t, "Append")
}

func TestHandleFrameAcknowledgesValidationFailure(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	handler, _ := newTestHandler(store)

	submitter := &fakeChannel{}
	store.On("Append", mock.Anything, int64(1), int64(0), "hi", "").
		Return(models.Message{}, repositories.ErrValidation).Once()

	handler.handleFrame(1, submitter, []byte(`{"message":"hi"}`))

	events := submitter.delivered()
	require.Len(t, events, 1)
	require.Equal(t, models.EventError, events[0].Type)
	require.Equal(t, models.CodeValidationFailed, events[0].Code)
	store.AssertExpectations(t)
}

func TestHandleFrameAcknowledgesStoreFailure(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	handler, _ := newTestHandler(store)

	submitter := &fakeChannel{}
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "").
		Return(models.Message{}, errors.Join(repositories.ErrStoreUnavailable, errors.New("dial tcp: refused"))).Once()

	handler.handleFrame(1, submitter, []byte(`{"receiver":2,"message":"hi"}`))

	events := submitter.delivered()
	require.Len(t, events, 1)
	require.Equal(t, models.EventError, events[0].Type)
	require.Equal(t, models.CodeStoreUnavailable, events[0].Code)
	store.AssertExpectations(t)
}
