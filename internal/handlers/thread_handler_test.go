package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) GetOrCreate(ctx context.Context, kind model.ListingKind, listingID, callerID int64) (*model.ChatThread, error) {
	args := m.Called(ctx, kind, listingID, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChatThread), args.Error(1)
}

func (m *MockChatService) Append(ctx context.Context, p model.ChatAppendRequest) (*model.ChatMessage, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChatMessage), args.Error(1)
}

func (m *MockChatService) History(ctx context.Context, threadID, callerID int64) ([]*model.ChatMessage, error) {
	args := m.Called(ctx, threadID, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ChatMessage), args.Error(1)
}

func (m *MockChatService) ListThreads(ctx context.Context, callerID int64) ([]*model.ChatThread, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ChatThread), args.Error(1)
}

func TestThreadHandler_OpenThread(t *testing.T) {
	t.Run("first contact opens a thread", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		bodyBytes, _ := json.Marshal(openThreadRequest{
			ListingID:   10,
			ListingKind: "vehicle",
		})

		svc.On("GetOrCreate", mock.Anything, model.ListingKindVehicle, int64(10), int64(1)).
			Return(&model.ChatThread{ID: 33, ListingID: 10, OwnerID: 2, CounterpartyID: 1}, nil)

		ctx := setupTestContext("POST", "/threads", bodyBytes, "1")
		handler.OpenThread(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.ChatThread
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(33), response.ID)

		svc.AssertExpectations(t)
	})

	t.Run("owner contacting their own listing is a 400", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		bodyBytes, _ := json.Marshal(openThreadRequest{
			ListingID:   10,
			ListingKind: "vehicle",
		})

		svc.On("GetOrCreate", mock.Anything, model.ListingKindVehicle, int64(10), int64(2)).
			Return(nil, services.ErrValidation)

		ctx := setupTestContext("POST", "/threads", bodyBytes, "2")
		handler.OpenThread(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("missing principal", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		ctx := setupTestContext("POST", "/threads", []byte("{}"), "")
		handler.OpenThread(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "GetOrCreate")
	})
}

func TestThreadHandler_PostMessage(t *testing.T) {
	t.Run("participant posts a message", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		bodyBytes, _ := json.Marshal(postMessageRequest{Body: "hola"})

		svc.On("Append", mock.Anything, model.ChatAppendRequest{
			ThreadID: 33,
			SenderID: 1,
			Body:     "hola",
		}).Return(&model.ChatMessage{ID: 5, ThreadID: 33, SenderID: 1, Body: "hola"}, nil)

		ctx := setupTestContext("POST", "/threads/33/messages", bodyBytes, "1")
		ctx.SetUserValue("id", "33")
		handler.PostMessage(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.ChatMessage
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(5), response.ID)

		svc.AssertExpectations(t)
	})

	t.Run("file attachment is forwarded", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		file := &model.FileRef{Name: "soat.pdf", Mime: "application/pdf", Size: 2048, URL: "https://files.example/soat.pdf"}
		bodyBytes, _ := json.Marshal(postMessageRequest{File: file})

		svc.On("Append", mock.Anything, mock.MatchedBy(func(p model.ChatAppendRequest) bool {
			return p.ThreadID == 33 && p.File != nil && p.File.Name == "soat.pdf"
		})).Return(&model.ChatMessage{ID: 6, ThreadID: 33, SenderID: 1, File: file}, nil)

		ctx := setupTestContext("POST", "/threads/33/messages", bodyBytes, "1")
		ctx.SetUserValue("id", "33")
		handler.PostMessage(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("empty message is a 400", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		bodyBytes, _ := json.Marshal(postMessageRequest{Body: "   "})

		svc.On("Append", mock.Anything, mock.Anything).Return(nil, services.ErrEmptyMessage)

		ctx := setupTestContext("POST", "/threads/33/messages", bodyBytes, "1")
		ctx.SetUserValue("id", "33")
		handler.PostMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("outsider is a 403", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		bodyBytes, _ := json.Marshal(postMessageRequest{Body: "hola"})

		svc.On("Append", mock.Anything, mock.Anything).Return(nil, services.ErrForbidden)

		ctx := setupTestContext("POST", "/threads/33/messages", bodyBytes, "9")
		ctx.SetUserValue("id", "33")
		handler.PostMessage(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})
}

func TestThreadHandler_GetHistory(t *testing.T) {
	t.Run("participant reads the log", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		svc.On("History", mock.Anything, int64(33), int64(1)).
			Return([]*model.ChatMessage{{ID: 1, Body: "hola"}, {ID: 2, Body: "buenas"}}, nil)

		ctx := setupTestContext("GET", "/threads/33", nil, "1")
		ctx.SetUserValue("id", "33")
		handler.GetHistory(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response []*model.ChatMessage
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Len(t, response, 2)
	})

	t.Run("unknown thread is a 404", func(t *testing.T) {
		svc := new(MockChatService)
		handler := NewThreadHandler(svc)

		svc.On("History", mock.Anything, int64(999), int64(1)).Return(nil, services.ErrNotFound)

		ctx := setupTestContext("GET", "/threads/999", nil, "1")
		ctx.SetUserValue("id", "999")
		handler.GetHistory(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestThreadHandler_ListThreads(t *testing.T) {
	svc := new(MockChatService)
	handler := NewThreadHandler(svc)

	svc.On("ListThreads", mock.Anything, int64(1)).
		Return([]*model.ChatThread{{ID: 33}, {ID: 34}}, nil)

	ctx := setupTestContext("GET", "/threads", nil, "1")
	handler.ListThreads(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response []*model.ChatThread
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Len(t, response, 2)
}
