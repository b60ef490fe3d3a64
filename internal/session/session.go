package session

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"classroom-chat/internal/models"
	"classroom-chat/internal/observability"
	"classroom-chat/internal/realtime"
)

// State is the connection state of a session's channel subscription.
type State string

const (
	StateDisconnected State = "disconnected"
	StateSubscribing  State = "subscribing"
	StateSubscribed   State = "subscribed"
	StateFailed       State = "failed"
)

// ChangeKind tells listeners what changed.
type ChangeKind string

const (
	// ChangeHistory carries the full list once the historical load settles.
	ChangeHistory ChangeKind = "history"
	// ChangeMessage carries a single appended message.
	ChangeMessage ChangeKind = "message"
	// ChangeState reports a connection state transition.
	ChangeState ChangeKind = "state"
)

// Change is delivered to the listener passed to Open. Changes are delivered
// one at a time, in the order they were applied.
type Change struct {
	Kind     ChangeKind
	Messages []models.Message
	State    State
	Err      error
}

// Session is one user's live view of one room.
type Session struct {
	svc      *Service
	roomID   string
	userID   string
	ctx      context.Context
	cancel   context.CancelFunc
	onChange func(Change)

	// notifyMu is held while a change is applied and delivered so listeners
	// observe changes in order. Lock order: notifyMu, then mu.
	notifyMu sync.Mutex
	mu       sync.Mutex

	state      State
	closed     bool
	messages   []models.Message
	historyErr error
	subErr     error
	sub        realtime.Subscription

	subscribed  chan struct{}
	historyDone chan struct{}
	closeOnce   sync.Once
}

// Open starts a session for userID in roomID. The historical load and the
// channel subscription run concurrently; Open returns with the session in
// StateSubscribing. Cancelling ctx has the same effect as Close.
//
// onChange may be nil. It runs while the session serialises its updates and
// must not call Send or Close.
func (s *Service) Open(ctx context.Context, roomID, userID string, onChange func(Change)) (*Session, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrMissingRoom
	}

	sctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		svc:         s,
		roomID:      roomID,
		userID:      strings.TrimSpace(userID),
		ctx:         sctx,
		cancel:      cancel,
		onChange:    onChange,
		state:       StateSubscribing,
		messages:    []models.Message{},
		subscribed:  make(chan struct{}),
		historyDone: make(chan struct{}),
	}
	observability.IncSessionsActive()

	go sess.loadHistory()
	go sess.subscribe()
	go func() {
		<-sctx.Done()
		sess.Close()
	}()
	return sess, nil
}

// RoomID returns the room this session is bound to.
func (s *Session) RoomID() string { return s.roomID }

// UserID returns the viewer's user id; empty for read-only viewers.
func (s *Session) UserID() string { return s.userID }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a snapshot of the visible messages.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// HistoryErr reports why the historical load failed, if it did.
func (s *Session) HistoryErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyErr
}

// Wait blocks until both the historical load and the subscription have
// settled, and returns the subscription error if there was one.
func (s *Session) Wait(ctx context.Context) error {
	for _, done := range []chan struct{}{s.historyDone, s.subscribed} {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subErr
}

// HandleBroadcast merges a broadcast event into the list. Messages already
// shown, matched by id or by author and client message id, are ignored.
func (s *Session) HandleBroadcast(event realtime.Event) {
	if event.Type != realtime.EventMessage {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(event.Payload, &msg); err != nil {
		log.Printf("session: invalid broadcast payload room_id=%s: %v", s.roomID, err)
		return
	}
	if msg.RoomID != "" && msg.RoomID != s.roomID {
		return
	}
	s.append(msg)
}

// Send persists content as a new message from the session's user, shows it
// locally and broadcasts it to the room's other subscribers.
//
// It does nothing and returns ErrNotSubscribed, ErrEmptyContent,
// ErrMissingIdentity or ErrClosed when the session cannot send. A failure to
// store the participant or message is returned; later failures are logged
// and the stored message is still returned.
func (s *Session) Send(ctx context.Context, content, clientMessageID string) (models.Message, error) {
	content = strings.TrimSpace(content)

	s.mu.Lock()
	state, closed, sub := s.state, s.closed, s.sub
	existing, seen := s.findLocked(models.Message{RoomID: s.roomID, UserID: s.userID, ClientMessageID: clientMessageID})
	s.mu.Unlock()

	switch {
	case closed:
		observability.IncSend("ignored")
		return models.Message{}, ErrClosed
	case state != StateSubscribed || sub == nil:
		observability.IncSend("ignored")
		return models.Message{}, ErrNotSubscribed
	case content == "":
		observability.IncSend("ignored")
		return models.Message{}, ErrEmptyContent
	case s.roomID == "" || s.userID == "":
		observability.IncSend("ignored")
		return models.Message{}, ErrMissingIdentity
	case seen:
		return existing, nil
	}

	ctx, span := s.svc.tracer.Start(ctx, "session.send", trace.WithAttributes(
		attribute.String("room.id", s.roomID),
		attribute.String("user.id", s.userID),
	))
	defer span.End()

	msg, err := s.svc.persist(ctx, s.roomID, s.userID, content, clientMessageID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		observability.IncSend("error")
		return models.Message{}, err
	}

	s.append(msg)
	s.svc.announce(ctx, msg, sub.Publish)
	observability.IncSend("ok")
	return msg, nil
}

// Close unsubscribes from the room channel and discards any result that
// arrives afterwards. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.notifyMu.Lock()
		s.mu.Lock()
		s.closed = true
		s.state = StateDisconnected
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		s.notifyMu.Unlock()

		s.cancel()
		if sub != nil {
			err = sub.Close()
		}
		observability.DecSessionsActive()
	})
	return err
}

func (s *Session) loadHistory() {
	defer close(s.historyDone)

	ctx, cancel := context.WithTimeout(s.ctx, s.svc.cfg.HistoryTimeout)
	defer cancel()
	history, err := s.svc.messages.ListRoomMessages(ctx, s.roomID)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.historyErr = err
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		log.Printf("session: load history failed room_id=%s: %v", s.roomID, err)
		observability.IncHistoryLoadFailure()
		s.notify(Change{Kind: ChangeHistory, Messages: snapshot, Err: err})
		return
	}

	s.messages = mergeHistory(history, s.messages)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeHistory, Messages: snapshot})
}

func (s *Session) subscribe() {
	defer close(s.subscribed)

	ctx, cancel := context.WithTimeout(s.ctx, s.svc.cfg.SubscribeTimeout)
	defer cancel()
	sub, err := s.svc.broker.Subscribe(ctx, realtime.ChannelName(s.roomID), s.HandleBroadcast)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return
	}
	if err != nil {
		s.state = StateFailed
		s.subErr = err
		s.mu.Unlock()
		log.Printf("session: subscribe failed room_id=%s: %v", s.roomID, err)
		s.notify(Change{Kind: ChangeState, State: StateFailed, Err: err})
		return
	}
	s.sub = sub
	s.state = StateSubscribed
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeState, State: StateSubscribed})
}

// append adds msg unless it is already shown.
func (s *Session) append(msg models.Message) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.findLocked(msg); dup {
		s.mu.Unlock()
		observability.IncBroadcastDuplicate()
		return false
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessage, Messages: []models.Message{msg}})
	return true
}

func (s *Session) findLocked(msg models.Message) (models.Message, bool) {
	for _, existing := range s.messages {
		if existing.SameAs(msg) {
			return existing, true
		}
	}
	return models.Message{}, false
}

func (s *Session) snapshotLocked() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) notify(change Change) {
	if s.onChange != nil {
		s.onChange(change)
	}
}

// mergeHistory puts the persisted history first, in creation order, followed
// by live messages the history did not contain.
func mergeHistory(history, live []models.Message) []models.Message {
	sorted := make([]models.Message, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	merged := make([]models.Message, 0, len(sorted)+len(live))
	contains := func(msg models.Message) bool {
		for _, m := range merged {
			if m.SameAs(msg) {
				return true
			}
		}
		return false
	}
	for _, m := range sorted {
		if !contains(m) {
			merged = append(merged, m)
		}
	}
	for _, m := range live {
		if !contains(m) {
			merged = append(merged, m)
		}
	}
	return merged
}
