package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/propia/deal-gateway/internal/services"
	xhttp "github.com/propia/deal-gateway/pkg/http"
)

// principal extracts the authenticated user id. Identity is owned by the
// upstream auth layer; the gateway trusts the header it injects.
func principal(ctx *xhttp.RequestCtx) (int64, bool) {
	v := ctx.Request.Header.Peek("X-User-ID")
	if len(v) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func requirePrincipal(ctx *xhttp.RequestCtx) (int64, bool) {
	id, ok := principal(ctx)
	if !ok {
		writeError(ctx, 401, "missing or invalid X-User-ID")
	}
	return id, ok
}

func pathID(ctx *xhttp.RequestCtx, name string) (int64, bool) {
	v, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		writeError(ctx, 400, "invalid "+name)
		return 0, false
	}
	return id, true
}

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an infrastructure fault and surfaces as
// 503 so the caller knows the write may not be durable.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var dup *services.DuplicateActiveTransactionError
	switch {
	case errors.As(err, &dup):
		writeJSON(ctx, 409, map[string]any{
			"error":          dup.Error(),
			"transaction_id": dup.ExistingID,
		})
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(ctx, 403, err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrSelfDealing),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong):
		writeError(ctx, 400, err.Error())
	default:
		writeError(ctx, 503, "service temporarily unavailable, please retry")
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
