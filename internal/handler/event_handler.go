package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/eventhub/internal/event"
	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	Create(ctx context.Context, principal *model.Principal, in event.CreateInput) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, principal *model.Principal, f event.ListFilter) ([]*model.Event, error)
	Update(ctx context.Context, principal *model.Principal, id string, decode event.UpdateDecoder) (*model.Event, error)
	Delete(ctx context.Context, principal *model.Principal, id string) error
}

// EventHandler はイベント管理のHTTPハンドラー。
type EventHandler struct {
	responder
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface, errs *middleware.ErrorTranslator) *EventHandler {
	return &EventHandler{
		responder: responder{errs: errs},
		service:   service,
	}
}

// List はイベント一覧を開催日時の昇順で返す。
// GET /events?category=concert&createdBy=me
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.service.List(r.Context(), middleware.PrincipalFromContext(r.Context()), event.ListFilter{
		Category:  q.Get("category"),
		CreatedBy: q.Get("createdBy"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponses(events))
}

// Create はイベントを作成する。作成者は認証ユーザーになる。
// POST /events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req event.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.service.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(e))
}

// Get はイベントの詳細を返す。
// GET /events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(e))
}

// Update はイベントを部分更新する。作成者本人か管理者のみ実行できる。
// ボディは権限確認の後にサービスから読み込まれる。
// PUT /events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	decode := func(dst *event.UpdateInput) error {
		return decodeJSON(w, r, dst)
	}

	e, err := h.service.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), decode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(e))
}

// Delete はイベントを削除する。作成者本人か管理者のみ実行できる。
// DELETE /events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "event deleted successfully"})
}
