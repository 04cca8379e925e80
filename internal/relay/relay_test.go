package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func storedMessage(id, sender, receiver int64, body string) models.Message {
	now := time.Now()
	return models.Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Kind:       models.KindText,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSubmitFansOutToAllParticipantChannels(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	registry := NewRegistry()
	r := NewRelay(store, registry)

	senderPhone := &fakeChannel{}
	senderLaptop := &fakeChannel{}
	receiverPhone := &fakeChannel{}
	receiverLaptop := &fakeChannel{}
	bystander := &fakeChannel{}

	registry.Register(1, senderPhone, ConnInfo{UserID: 1})
	registry.Register(1, senderLaptop, ConnInfo{UserID: 1})
	registry.Register(2, receiverPhone, ConnInfo{UserID: 2})
	registry.Register(2, receiverLaptop, ConnInfo{UserID: 2})
	registry.Register(3, bystander, ConnInfo{UserID: 3})

	stored := storedMessage(7, 1, 2, "hi")
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "text").Return(stored, nil).Once()

	msg, err := r.Submit(context.Background(), 1, 2, "hi", "text")
	require.NoError(t, err)
	require.Equal(t, stored, msg)

	for _, ch := range []*fakeChannel{senderPhone, senderLaptop, receiverPhone, receiverLaptop} {
		events := ch.delivered()
		require.Len(t, events, 1)
		require.Equal(t, models.EventMessage, events[0].Type)
		require.Equal(t, stored, *events[0].Message)
	}
	require.Empty(t, bystander.delivered())
	store.AssertExpectations(t)
}

func TestSubmitOfflineParticipantsStillPersists(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	r := NewRelay(store, NewRegistry())

	stored := storedMessage(1, 1, 2, "hi")
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "text").Return(stored, nil).Once()

	msg, err := r.Submit(context.Background(), 1, 2, "hi", "text")
	require.NoError(t, err)
	require.Equal(t, int64(1), msg.ID)
	require.False(t, msg.IsRead)
	store.AssertExpectations(t)
}

func TestSubmitStoreFailureSkipsDelivery(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	registry := NewRegistry()
	r := NewRelay(store, registry)

	receiver := &fakeChannel{}
	registry.Register(2, receiver, ConnInfo{UserID: 2})

	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "text").
		Return(models.Message{}, repositories.ErrStoreUnavailable).Once()

	_, err := r.Submit(context.Background(), 1, 2, "hi", "text")
	require.ErrorIs(t, err, repositories.ErrStoreUnavailable)
	require.Empty(t, receiver.delivered())
	store.AssertExpectations(t)
}

func TestSubmitSelfMessageDeliversOncePerChannel(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	registry := NewRegistry()
	r := NewRelay(store, registry)

	ch := &fakeChannel{}
	registry.Register(1, ch, ConnInfo{UserID: 1})

	stored := storedMessage(3, 1, 1, "note to self")
	store.On("Append", mock.Anything, int64(1), int64(1), "note to self", "text").Return(stored, nil).Once()

	_, err := r.Submit(context.Background(), 1, 1, "note to self", "text")
	require.NoError(t, err)
	require.Len(t, ch.delivered(), 1)
	store.AssertExpectations(t)
}

func TestSubmitFailedPushDropsChannelOnly(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	registry := NewRegistry()
	r := NewRelay(store, registry)

	broken := &fakeChannel{failSend: true}
	healthy := &fakeChannel{}
	registry.Register(2, broken, ConnInfo{UserID: 2})
	registry.Register(2, healthy, ConnInfo{UserID: 2})

	stored := storedMessage(9, 1, 2, "hi")
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "text").Return(stored, nil).Once()

	_, err := r.Submit(context.Background(), 1, 2, "hi", "text")
	require.NoError(t, err)

	require.Len(t, healthy.delivered(), 1)
	require.True(t, broken.closed)
	require.Len(t, registry.ChannelsFor(2), 1, "broken channel should be unregistered")
	store.AssertExpectations(t)
}

func TestSubmitterSessionsStayInSync(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	registry := NewRegistry()
	r := NewRelay(store, registry)

	senderOther := &fakeChannel{}
	registry.Register(1, senderOther, ConnInfo{UserID: 1})

	stored := storedMessage(4, 1, 2, "hi")
	store.On("Append", mock.Anything, int64(1), int64(2), "hi", "text").Return(stored, nil).Once()

	_, err := r.Submit(context.Background(), 1, 2, "hi", "text")
	require.NoError(t, err)
	require.Len(t, senderOther.delivered(), 1)
}
