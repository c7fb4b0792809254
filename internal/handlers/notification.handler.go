package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/propia/deal-gateway/internal/model"
	xhttp "github.com/propia/deal-gateway/pkg/http"
)

type NotificationService interface {
	Feed(ctx context.Context, f model.NotificationFilter) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID int64) error
}

type NotificationHandler struct {
	svc NotificationService
}

func RegisterNotificationRoutes(e *router.Group, h *NotificationHandler) {
	e.GET("/notifications", h.ListNotifications)
	e.POST("/notifications/{id}/read", h.MarkRead)
}

func NewNotificationHandler(notificationService NotificationService) *NotificationHandler {
	return &NotificationHandler{
		svc: notificationService,
	}
}

type notificationListResponse struct {
	Items []*model.Notification `json:"items"`
	Total int64                 `json:"total"`
}

func (h *NotificationHandler) ListNotifications(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}

	f := model.NotificationFilter{RecipientID: userID}
	if query(ctx, "unread") == "true" {
		f.UnreadOnly = true
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.Feed(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, notificationListResponse{Items: items, Total: total})
}

func (h *NotificationHandler) MarkRead(ctx *xhttp.RequestCtx) {
	userID, ok := requirePrincipal(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(ctx, id, userID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]bool{"read": true})
}
