package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"classroom-chat/internal/models"
	"classroom-chat/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, name string, category models.RoomCategory, createdBy string) (models.Room, error) {
	args := m.Called(ctx, name, category, createdBy)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) UpdateLastMessage(ctx context.Context, roomID string, summary string) error {
	args := m.Called(ctx, roomID, summary)
	return args.Error(0)
}

type ParticipantRepositoryMock struct {
	mock.Mock
}

func (m *ParticipantRepositoryMock) GetParticipant(ctx context.Context, roomID string, userID string) (models.Participant, error) {
	args := m.Called(ctx, roomID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ParticipantRepositoryMock) CreateParticipant(ctx context.Context, roomID string, userID string) (models.Participant, error) {
	args := m.Called(ctx, roomID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type QuizRepositoryMock struct {
	mock.Mock
}

func (m *QuizRepositoryMock) SaveResult(ctx context.Context, userID string, score int, totalQuestions int) (models.QuizResult, error) {
	args := m.Called(ctx, userID, score, totalQuestions)
	var res models.QuizResult
	if val := args.Get(0); val != nil {
		res = val.(models.QuizResult)
	}
	return res, args.Error(1)
}

func (m *QuizRepositoryMock) ListResultsForUser(ctx context.Context, userID string) ([]models.QuizResult, error) {
	args := m.Called(ctx, userID)
	var results []models.QuizResult
	if val := args.Get(0); val != nil {
		results = val.([]models.QuizResult)
	}
	return results, args.Error(1)
}

func (m *QuizRepositoryMock) TopScores(ctx context.Context, limit int) ([]models.QuizResult, error) {
	args := m.Called(ctx, limit)
	var results []models.QuizResult
	if val := args.Get(0); val != nil {
		results = val.([]models.QuizResult)
	}
	return results, args.Error(1)
}

type QuestionRepositoryMock struct {
	mock.Mock
}

func (m *QuestionRepositoryMock) CreateQuestion(ctx context.Context, q models.NewQuestion) (models.Question, error) {
	args := m.Called(ctx, q)
	var res models.Question
	if val := args.Get(0); val != nil {
		res = val.(models.Question)
	}
	return res, args.Error(1)
}

func (m *QuestionRepositoryMock) ListQuestions(ctx context.Context, category string) ([]models.Question, error) {
	args := m.Called(ctx, category)
	var res []models.Question
	if val := args.Get(0); val != nil {
		res = val.([]models.Question)
	}
	return res, args.Error(1)
}

func (m *QuestionRepositoryMock) RandomQuestions(ctx context.Context, limit int) ([]models.Question, error) {
	args := m.Called(ctx, limit)
	var res []models.Question
	if val := args.Get(0); val != nil {
		res = val.([]models.Question)
	}
	return res, args.Error(1)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

func (m *ProfileRepositoryMock) CreateProfile(ctx context.Context, userID, email, fullName string) (models.Profile, error) {
	args := m.Called(ctx, userID, email, fullName)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

func (m *ProfileRepositoryMock) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error) {
	args := m.Called(ctx, userID, update)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.ParticipantRepository = (*ParticipantRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.QuizRepository = (*QuizRepositoryMock)(nil)
var _ repositories.QuestionRepository = (*QuestionRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
