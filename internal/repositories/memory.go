package repositories

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"classroom-chat/internal/models"
)

// MemoryStore keeps rooms, participants, messages, quiz data and profiles in
// process.
// It backs local development (DB_DSN=memory) and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	rooms        map[string]models.Room
	participants map[string]models.Participant // roomID + "/" + userID
	messages     map[string][]models.Message   // roomID -> messages
	byClientID   map[string]models.Message    // roomID + "/" + userID + "/" + clientMessageID
	quizResults  []models.QuizResult
	questions    []models.Question
	profiles     map[string]models.Profile
	now          func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[string]models.Room),
		participants: make(map[string]models.Participant),
		messages:     make(map[string][]models.Message),
		byClientID:   make(map[string]models.Message),
		profiles:     make(map[string]models.Profile),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, name string, category models.RoomCategory, createdBy string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  category,
		CreatedBy: createdBy,
		CreatedAt: s.now(),
	}
	s.rooms[room.ID] = room
	return room, nil
}

func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *MemoryStore) ListRooms(_ context.Context) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	return rooms, nil
}

func (s *MemoryStore) UpdateLastMessage(_ context.Context, roomID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.LastMessage = &summary
	s.rooms[roomID] = room
	return nil
}

func (s *MemoryStore) GetParticipant(_ context.Context, roomID string, userID string) (models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[roomID+"/"+userID]
	if !ok {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, nil
}

func (s *MemoryStore) CreateParticipant(_ context.Context, roomID string, userID string) (models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return models.Participant{}, ErrRoomNotFound
	}
	key := roomID + "/" + userID
	if p, ok := s.participants[key]; ok {
		return p, nil
	}
	p := models.Participant{ID: uuid.NewString(), RoomID: roomID, UserID: userID, CreatedAt: s.now()}
	s.participants[key] = p
	return p, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, in models.NewMessage) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := in.RoomID + "/" + in.UserID + "/" + in.ClientMessageID
	if existing, ok := s.byClientID[key]; ok && in.ClientMessageID != "" {
		return existing, nil
	}
	if _, ok := s.rooms[in.RoomID]; !ok {
		return models.Message{}, ErrRoomNotFound
	}
	msg := models.Message{
		ID:              uuid.NewString(),
		RoomID:          in.RoomID,
		ParticipantID:   in.ParticipantID,
		UserID:          in.UserID,
		Content:         in.Content,
		ClientMessageID: in.ClientMessageID,
		CreatedAt:       s.now(),
	}
	s.messages[in.RoomID] = append(s.messages[in.RoomID], msg)
	if in.ClientMessageID != "" {
		s.byClientID[key] = msg
	}
	return msg, nil
}

func (s *MemoryStore) ListRoomMessages(_ context.Context, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]models.Message, len(s.messages[roomID]))
	copy(msgs, s.messages[roomID])
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (s *MemoryStore) SaveResult(_ context.Context, userID string, score int, totalQuestions int) (models.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := models.QuizResult{
		ID:             uuid.NewString(),
		UserID:         userID,
		Score:          score,
		TotalQuestions: totalQuestions,
		CompletedAt:    s.now(),
	}
	s.quizResults = append(s.quizResults, res)
	return res, nil
}

func (s *MemoryStore) ListResultsForUser(_ context.Context, userID string) ([]models.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []models.QuizResult{}
	for i := len(s.quizResults) - 1; i >= 0; i-- {
		if s.quizResults[i].UserID == userID {
			results = append(results, s.quizResults[i])
		}
	}
	return results, nil
}

func (s *MemoryStore) TopScores(_ context.Context, limit int) ([]models.QuizResult, error) {
	s.mu.RLock()
	results := make([]models.QuizResult, len(s.quizResults))
	copy(results, s.quizResults)
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) CreateQuestion(_ context.Context, in models.NewQuestion) (models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := models.Question{
		ID:            uuid.NewString(),
		Question:      in.Question,
		Options:       append([]string(nil), in.Options...),
		CorrectAnswer: in.CorrectAnswer,
		Explanation:   in.Explanation,
		Category:      in.Category,
		CreatedAt:     s.now(),
	}
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *MemoryStore) ListQuestions(_ context.Context, category string) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	questions := []models.Question{}
	for _, q := range s.questions {
		if category == "" || q.Category == category {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (s *MemoryStore) RandomQuestions(_ context.Context, limit int) ([]models.Question, error) {
	s.mu.RLock()
	questions := make([]models.Question, len(s.questions))
	copy(questions, s.questions)
	s.mu.RUnlock()

	rand.Shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })
	if limit >= 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *MemoryStore) CreateProfile(_ context.Context, userID, email, fullName string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; ok {
		return models.Profile{}, ErrProfileExists
	}
	now := s.now()
	p := models.Profile{ID: userID, Email: email, FullName: fullName, CreatedAt: now, UpdatedAt: now}
	s.profiles[userID] = p
	return p, nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, userID string, update models.ProfileUpdate) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}
	if update.Email != nil {
		p.Email = *update.Email
	}
	if update.FullName != nil {
		p.FullName = *update.FullName
	}
	if update.AvatarURL != nil {
		avatar := *update.AvatarURL
		p.AvatarURL = &avatar
	}
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return p, nil
}

var (
	_ RoomRepository        = (*MemoryStore)(nil)
	_ ParticipantRepository = (*MemoryStore)(nil)
	_ MessageRepository     = (*MemoryStore)(nil)
	_ QuizRepository        = (*MemoryStore)(nil)
	_ QuestionRepository    = (*MemoryStore)(nil)
	_ ProfileRepository     = (*MemoryStore)(nil)
)
