package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Rrens/livedesk/internal/domain"
)

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.ChatSession, welcome *domain.Message) error {
	args := m.Called(ctx, session, welcome)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.ChatSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) SetRating(ctx context.Context, id uuid.UUID, rating int, feedback string) error {
	args := m.Called(ctx, id, rating, feedback)
	return args.Error(0)
}

func (m *MockSessionRepository) ListWaiting(ctx context.Context) ([]domain.ChatSession, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.ChatSession, error) {
	args := m.Called(ctx, agentID)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) ListResolvedByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	args := m.Called(ctx, agentID, limit, offset)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]domain.ChatSession, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockPresenceRepository mocks the PresenceRepository interface
type MockPresenceRepository struct {
	mock.Mock
}

func (m *MockPresenceRepository) Upsert(ctx context.Context, presence *domain.AgentPresence) error {
	args := m.Called(ctx, presence)
	return args.Error(0)
}

func (m *MockPresenceRepository) SetState(ctx context.Context, userID uuid.UUID, state domain.AgentState) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *MockPresenceRepository) Snapshot(ctx context.Context) ([]domain.AgentPresence, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.AgentPresence), args.Error(1)
}

func (m *MockPresenceRepository) SetAllOffline(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockTxStore mocks the TxStore interface
type MockTxStore struct {
	mock.Mock
}

func (m *MockTxStore) Assign(ctx context.Context, sessionID, agentID uuid.UUID, agentName string) (*domain.ChatSession, *domain.Message, error) {
	args := m.Called(ctx, sessionID, agentID, agentName)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ChatSession), args.Get(1).(*domain.Message), args.Error(2)
}

func (m *MockTxStore) Transfer(ctx context.Context, sessionID, fromID, toID uuid.UUID, toName string) (*domain.ChatSession, *domain.Message, error) {
	args := m.Called(ctx, sessionID, fromID, toID, toName)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ChatSession), args.Get(1).(*domain.Message), args.Error(2)
}

func (m *MockTxStore) Resolve(ctx context.Context, sessionID, agentID uuid.UUID) (*domain.ChatSession, *domain.Message, error) {
	args := m.Called(ctx, sessionID, agentID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ChatSession), args.Get(1).(*domain.Message), args.Error(2)
}

func (m *MockTxStore) Abandon(ctx context.Context, sessionID uuid.UUID, reason string, at time.Time) (*domain.ChatSession, *domain.Message, *uuid.UUID, error) {
	args := m.Called(ctx, sessionID, reason, at)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	var released *uuid.UUID
	if args.Get(2) != nil {
		released = args.Get(2).(*uuid.UUID)
	}
	return args.Get(0).(*domain.ChatSession), args.Get(1).(*domain.Message), released, args.Error(3)
}

func (m *MockTxStore) Requeue(ctx context.Context, sessionID, agentID uuid.UUID) (*domain.ChatSession, *domain.Message, error) {
	args := m.Called(ctx, sessionID, agentID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ChatSession), args.Get(1).(*domain.Message), args.Error(2)
}
