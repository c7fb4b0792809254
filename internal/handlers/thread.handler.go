package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/propia/deal-gateway/internal/model"
	xhttp "github.com/propia/deal-gateway/pkg/http"
)

type ChatService interface {
	GetOrCreate(ctx context.Context, kind model.ListingKind, listingID, callerID int64) (*model.ChatThread, error)
	Append(ctx context.Context, p model.ChatAppendRequest) (*model.ChatMessage, error)
	History(ctx context.Context, threadID, callerID int64) ([]*model.ChatMessage, error)
	ListThreads(ctx context.Context, callerID int64) ([]*model.ChatThread, error)
}

type ThreadHandler struct {
	svc ChatService
}

func RegisterThreadRoutes(e *router.Group, h *ThreadHandler) {
	e.POST("/threads", h.OpenThread)
	e.GET("/threads", h.ListThreads)
	e.GET("/threads/{id}", h.GetHistory)
	e.POST("/threads/{id}/messages", h.PostMessage)
}

func NewThreadHandler(chatService ChatService) *ThreadHandler {
	return &ThreadHandler{
		svc: chatService,
	}
}

type openThreadRequest struct {
	ListingID   int64  `json:"listing_id"`
	ListingKind string `json:"listing_kind"`
}

type postMessageRequest struct {
	Body string         `json:"body"`
	File *model.FileRef `json:"file"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ThreadHandler) OpenThread(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	var req openThreadRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	thread, err := h.svc.GetOrCreate(ctx, model.ListingKind(req.ListingKind), req.ListingID, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, thread)
}

func (h *ThreadHandler) ListThreads(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	threads, err := h.svc.ListThreads(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, threads)
}

func (h *ThreadHandler) GetHistory(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	threadID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	messages, err := h.svc.History(ctx, threadID, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, messages)
}

func (h *ThreadHandler) PostMessage(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	threadID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req postMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	msg, err := h.svc.Append(ctx, model.ChatAppendRequest{
		ThreadID: threadID,
		SenderID: userID,
		Body:     req.Body,
		File:     req.File,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, msg)
}
