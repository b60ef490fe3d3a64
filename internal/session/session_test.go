package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classroom-chat/internal/mocks"
	"classroom-chat/internal/models"
	"classroom-chat/internal/realtime"
	"classroom-chat/internal/repositories"
)

const waitFor = 2 * time.Second

// gatedBroker holds every Subscribe until release is closed.
type gatedBroker struct {
	*realtime.Hub
	release chan struct{}
}

func newGatedBroker() *gatedBroker {
	return &gatedBroker{Hub: realtime.NewHub(), release: make(chan struct{})}
}

func (b *gatedBroker) Subscribe(ctx context.Context, channel string, handler realtime.Handler) (realtime.Subscription, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Hub.Subscribe(ctx, channel, handler)
}

type eventLog struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (l *eventLog) handle(e realtime.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *eventLog) first() realtime.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[0]
}

type repoMocks struct {
	rooms        *mocks.RoomRepositoryMock
	participants *mocks.ParticipantRepositoryMock
	messages     *mocks.MessageRepositoryMock
}

func newRepoMocks() repoMocks {
	return repoMocks{
		rooms:        new(mocks.RoomRepositoryMock),
		participants: new(mocks.ParticipantRepositoryMock),
		messages:     new(mocks.MessageRepositoryMock),
	}
}

func (r repoMocks) service(broker realtime.Broker) *Service {
	return NewService(r.messages, r.rooms, r.participants, broker, Config{})
}

func (r repoMocks) assertExpectations(t *testing.T) {
	r.rooms.AssertExpectations(t)
	r.participants.AssertExpectations(t)
	r.messages.AssertExpectations(t)
}

func openAndWait(t *testing.T, svc *Service, roomID, userID string) *Session {
	t.Helper()
	sess, err := svc.Open(context.Background(), roomID, userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))
	return sess
}

func TestOpenRequiresRoom(t *testing.T) {
	svc := newRepoMocks().service(realtime.NewHub())
	_, err := svc.Open(context.Background(), "  ", "u1", nil)
	require.ErrorIs(t, err, ErrMissingRoom)
}

func TestOpenLoadsHistoryInCreationOrder(t *testing.T) {
	repos := newRepoMocks()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	history := []models.Message{
		{ID: "m1", RoomID: "r1", Content: "first", CreatedAt: base},
		{ID: "m2", RoomID: "r1", Content: "second", CreatedAt: base.Add(time.Minute)},
	}
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return(history, nil).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "u1")

	assert.Equal(t, StateSubscribed, sess.State())
	assert.Equal(t, history, sess.Messages())
	assert.NoError(t, sess.HistoryErr())
	repos.assertExpectations(t)
}

func TestHistoryFailureLeavesListEmpty(t *testing.T) {
	repos := newRepoMocks()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return(nil, assert.AnError).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "u1")

	assert.Empty(t, sess.Messages())
	assert.ErrorIs(t, sess.HistoryErr(), assert.AnError)
	assert.Equal(t, StateSubscribed, sess.State())
}

func TestSendEmptyContentIsNoop(t *testing.T) {
	repos := newRepoMocks()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	hub := realtime.NewHub()
	var other eventLog
	_, err := hub.Subscribe(context.Background(), realtime.ChannelName("r1"), other.handle)
	require.NoError(t, err)

	sess := openAndWait(t, repos.service(hub), "r1", "u1")

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := sess.Send(context.Background(), content, "")
		require.ErrorIs(t, err, ErrEmptyContent)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sess.Messages())
	assert.Equal(t, 0, other.count())
	repos.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	repos.rooms.AssertNotCalled(t, "UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendWithoutUserIsNoop(t *testing.T) {
	repos := newRepoMocks()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "")

	_, err := sess.Send(context.Background(), "hello", "")
	require.ErrorIs(t, err, ErrMissingIdentity)
	repos.participants.AssertNotCalled(t, "GetParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendBeforeSubscribedIsNoop(t *testing.T) {
	repos := newRepoMocks()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	broker := newGatedBroker()

	sess, err := repos.service(broker).Open(context.Background(), "r1", "u1", nil)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, StateSubscribing, sess.State())
	_, err = sess.Send(context.Background(), "hello", "")
	require.ErrorIs(t, err, ErrNotSubscribed)
	repos.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)

	close(broker.release)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))
	assert.Equal(t, StateSubscribed, sess.State())
}

func TestSendPersistsSummarisesAndBroadcastsOnce(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	var other eventLog
	_, err := hub.Subscribe(context.Background(), realtime.ChannelName("r1"), other.handle)
	require.NoError(t, err)

	stored := models.Message{ID: "m1", RoomID: "r1", ParticipantID: "p1", UserID: "u1", Content: "hello", ClientMessageID: "k1", CreatedAt: time.Now()}
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	repos.participants.On("GetParticipant", mock.Anything, "r1", "u1").Return(nil, repositories.ErrParticipantNotFound).Once()
	repos.participants.On("CreateParticipant", mock.Anything, "r1", "u1").Return(models.Participant{ID: "p1", RoomID: "r1", UserID: "u1"}, nil).Once()
	repos.messages.On("CreateMessage", mock.Anything, models.NewMessage{
		RoomID: "r1", ParticipantID: "p1", UserID: "u1", Content: "hello", ClientMessageID: "k1",
	}).Return(stored, nil).Once()
	repos.rooms.On("UpdateLastMessage", mock.Anything, "r1", "hello").Return(nil).Once()

	sess := openAndWait(t, repos.service(hub), "r1", "u1")

	msg, err := sess.Send(context.Background(), "  hello  ", "k1")
	require.NoError(t, err)
	assert.Equal(t, stored, msg)
	assert.Equal(t, []models.Message{stored}, sess.Messages())

	require.Eventually(t, func() bool { return other.count() == 1 }, waitFor, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, other.count())
	assert.Equal(t, realtime.EventMessage, other.first().Type)
	repos.assertExpectations(t)
}

func TestSendRepeatClientMessageIDDoesNotResend(t *testing.T) {
	repos := newRepoMocks()
	stored := models.Message{ID: "m1", RoomID: "r1", ParticipantID: "p1", UserID: "u1", Content: "hello", ClientMessageID: "k1"}
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	repos.participants.On("GetParticipant", mock.Anything, "r1", "u1").Return(models.Participant{ID: "p1"}, nil).Once()
	repos.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil).Once()
	repos.rooms.On("UpdateLastMessage", mock.Anything, "r1", "hello").Return(nil).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "u1")

	first, err := sess.Send(context.Background(), "hello", "k1")
	require.NoError(t, err)
	second, err := sess.Send(context.Background(), "hello", "k1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, sess.Messages(), 1)
	repos.assertExpectations(t)
}

func TestSendInsertFailureShowsNothing(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	var other eventLog
	_, err := hub.Subscribe(context.Background(), realtime.ChannelName("r1"), other.handle)
	require.NoError(t, err)

	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	repos.participants.On("GetParticipant", mock.Anything, "r1", "u1").Return(models.Participant{ID: "p1"}, nil).Once()
	repos.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	sess := openAndWait(t, repos.service(hub), "r1", "u1")

	_, err = sess.Send(context.Background(), "hello", "")
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, sess.Messages())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, other.count())
	repos.rooms.AssertNotCalled(t, "UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendParticipantFailureAborts(t *testing.T) {
	repos := newRepoMocks()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	repos.participants.On("GetParticipant", mock.Anything, "r1", "u1").Return(nil, assert.AnError).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "u1")

	_, err := sess.Send(context.Background(), "hello", "")
	require.ErrorIs(t, err, assert.AnError)
	repos.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	repos.participants.AssertNotCalled(t, "CreateParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendSummaryFailureKeepsLocalMessage(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	var other eventLog
	_, err := hub.Subscribe(context.Background(), realtime.ChannelName("r1"), other.handle)
	require.NoError(t, err)

	stored := models.Message{ID: "m1", RoomID: "r1", UserID: "u1", Content: "hello", ClientMessageID: "k1"}
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	repos.participants.On("GetParticipant", mock.Anything, "r1", "u1").Return(models.Participant{ID: "p1"}, nil).Once()
	repos.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(stored, nil).Once()
	repos.rooms.On("UpdateLastMessage", mock.Anything, "r1", "hello").Return(errors.New("db down")).Once()

	sess := openAndWait(t, repos.service(hub), "r1", "u1")

	msg, err := sess.Send(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, stored, msg)
	assert.Equal(t, []models.Message{stored}, sess.Messages())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, other.count())
}

func TestHandleBroadcastIgnoresDuplicates(t *testing.T) {
	repos := newRepoMocks()
	existing := models.Message{ID: "m1", RoomID: "r1", Content: "hi", ClientMessageID: "k1"}
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{existing}, nil).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "u1")

	dupByID, err := realtime.NewEvent(realtime.EventMessage, models.Message{ID: "m1", RoomID: "r1", Content: "hi"})
	require.NoError(t, err)
	dupByKey, err := realtime.NewEvent(realtime.EventMessage, models.Message{ID: "other", RoomID: "r1", ClientMessageID: "k1"})
	require.NoError(t, err)
	fresh, err := realtime.NewEvent(realtime.EventMessage, models.Message{ID: "m2", RoomID: "r1", Content: "new"})
	require.NoError(t, err)

	sess.HandleBroadcast(dupByID)
	sess.HandleBroadcast(dupByKey)
	sess.HandleBroadcast(fresh)
	sess.HandleBroadcast(fresh)
	sess.HandleBroadcast(realtime.Event{Type: "typing"})
	sess.HandleBroadcast(realtime.Event{Type: realtime.EventMessage, Payload: []byte("not json")})

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestBroadcastBeforeHistoryIsKept(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m1 := models.Message{ID: "m1", RoomID: "r1", Content: "one", CreatedAt: base}
	m2 := models.Message{ID: "m2", RoomID: "r1", Content: "two", CreatedAt: base.Add(time.Second)}
	m3 := models.Message{ID: "m3", RoomID: "r1", Content: "three", CreatedAt: base.Add(2 * time.Second)}

	release := make(chan struct{})
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").
		Run(func(mock.Arguments) { <-release }).
		Return([]models.Message{m1, m2}, nil).Once()

	sess, err := repos.service(hub).Open(context.Background(), "r1", "u1", nil)
	require.NoError(t, err)
	defer sess.Close()
	require.Eventually(t, func() bool { return sess.State() == StateSubscribed }, waitFor, 5*time.Millisecond)

	for _, m := range []models.Message{m3, m2} {
		event, err := realtime.NewEvent(realtime.EventMessage, m)
		require.NoError(t, err)
		require.NoError(t, hub.Publish(context.Background(), realtime.ChannelName("r1"), event))
	}
	require.Eventually(t, func() bool { return len(sess.Messages()) == 2 }, waitFor, 5*time.Millisecond)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	ids := []string{}
	for _, m := range sess.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestCloseDiscardsLateHistory(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	release := make(chan struct{})
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").
		Run(func(mock.Arguments) { <-release }).
		Return([]models.Message{{ID: "m1", RoomID: "r1"}}, nil).Once()

	var mu sync.Mutex
	var changes []Change
	sess, err := repos.service(hub).Open(context.Background(), "r1", "u1", func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.State() == StateSubscribed }, waitFor, 5*time.Millisecond)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	assert.Empty(t, sess.Messages())
	assert.Equal(t, StateDisconnected, sess.State())
	assert.Equal(t, 0, hub.Subscribers(realtime.ChannelName("r1")))
	mu.Lock()
	defer mu.Unlock()
	for _, c := range changes {
		assert.NotEqual(t, ChangeHistory, c.Kind)
	}

	_, err = sess.Send(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCancelledContextClosesSession(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := repos.service(hub).Open(ctx, "r1", "u1", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.State() == StateSubscribed }, waitFor, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return sess.State() == StateDisconnected }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Subscribers(realtime.ChannelName("r1")) == 0 }, waitFor, 5*time.Millisecond)
}

func TestSubscribeTimeoutFailsSession(t *testing.T) {
	repos := newRepoMocks()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	svc := NewService(repos.messages, repos.rooms, repos.participants, newGatedBroker(), Config{SubscribeTimeout: 20 * time.Millisecond})

	sess, err := svc.Open(context.Background(), "r1", "u1", nil)
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	err = sess.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateFailed, sess.State())

	_, err = sess.Send(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestOnChangeReportsHistoryStateAndMessages(t *testing.T) {
	repos := newRepoMocks()
	hub := realtime.NewHub()
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{{ID: "m1", RoomID: "r1"}}, nil).Once()

	var mu sync.Mutex
	kinds := map[ChangeKind]int{}
	sess, err := repos.service(hub).Open(context.Background(), "r1", "u1", func(c Change) {
		mu.Lock()
		kinds[c.Kind]++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	event, err := realtime.NewEvent(realtime.EventMessage, models.Message{ID: "m2", RoomID: "r1"})
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), realtime.ChannelName("r1"), event))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return kinds[ChangeMessage] == 1
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, kinds[ChangeHistory])
	assert.Equal(t, 1, kinds[ChangeState])
}

func TestMergeHistory(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []models.Message{
		{ID: "b", CreatedAt: base.Add(time.Second)},
		{ID: "a", CreatedAt: base},
	}
	live := []models.Message{{ID: "c", CreatedAt: base.Add(-time.Hour)}, {ID: "a"}}

	merged := mergeHistory(history, live)

	ids := []string{}
	for _, m := range merged {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestClientMessageIDIsScopedToRoomAndAuthor(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	teachers, err := store.CreateRoom(ctx, "Teachers", models.RoomCategoryTeacher, "alice")
	require.NoError(t, err)
	general, err := store.CreateRoom(ctx, "General", models.RoomCategoryGeneral, "bob")
	require.NoError(t, err)
	svc := NewService(store, store, store, realtime.NewHub(), Config{})

	note, err := svc.Post(ctx, teachers.ID, "alice", "private teacher note", "k-1")
	require.NoError(t, err)

	sess := openAndWait(t, svc, general.ID, "bob")
	msg, err := sess.Send(ctx, "hi all", "k-1")
	require.NoError(t, err)

	assert.NotEqual(t, note.ID, msg.ID)
	assert.Equal(t, general.ID, msg.RoomID)
	assert.Equal(t, "bob", msg.UserID)
	assert.Equal(t, "hi all", msg.Content)
	assert.Equal(t, []models.Message{msg}, sess.Messages())

	generalRows, err := store.ListRoomMessages(ctx, general.ID)
	require.NoError(t, err)
	require.Len(t, generalRows, 1)
	assert.Equal(t, "bob", generalRows[0].UserID)

	teacherRoom, err := store.GetRoom(ctx, teachers.ID)
	require.NoError(t, err)
	require.NotNil(t, teacherRoom.LastMessage)
	assert.Equal(t, "private teacher note", *teacherRoom.LastMessage)
}

func TestSendRejectsRowFromAnotherRoom(t *testing.T) {
	repos := newRepoMocks()
	foreign := models.Message{ID: "m9", RoomID: "r2", UserID: "alice", Content: "private", ClientMessageID: "k-1"}
	repos.messages.On("ListRoomMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()
	repos.participants.On("GetParticipant", mock.Anything, "r1", "u1").Return(models.Participant{ID: "p1"}, nil).Once()
	repos.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(foreign, nil).Once()

	sess := openAndWait(t, repos.service(realtime.NewHub()), "r1", "u1")

	_, err := sess.Send(context.Background(), "hello", "k-1")
	require.ErrorIs(t, err, ErrMessageConflict)
	assert.Empty(t, sess.Messages())
	repos.rooms.AssertNotCalled(t, "UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything)
}
