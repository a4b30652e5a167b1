package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	repository "github.com/okian/todos/internal/adapters/repository"
	"github.com/okian/todos/internal/domain/model"
	"github.com/okian/todos/internal/domain/types"
	"github.com/okian/todos/pkg/logger"
	"github.com/okian/todos/pkg/metrics"
)

// TodosHandler serves the /todos collection and /todos/{id} items.
type TodosHandler struct {
	deps            Dependencies
	defaultPageSize int
	maxPageSize     int
	publicURL       string
	logger          logger.Logger
}

// NewTodosHandler creates a todos handler with default pagination limits.
func NewTodosHandler(deps Dependencies) *TodosHandler {
	return &TodosHandler{
		deps:            deps,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     DefaultMaxPageSize,
	}
}

// HandleList handles GET /todos?page=N&page_size=M.
func (h *TodosHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_todos"

	page, err := parsePositiveQuery(r, "page", 1)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	pageSize, err := parsePositiveQuery(r, "page_size", h.defaultPageSize)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if pageSize > h.maxPageSize {
		h.fail(w, r, op, invalidField("Invalid pagination parameters", "page_size",
			fmt.Sprintf("must not exceed %d", h.maxPageSize)))
		return
	}

	res, err := h.deps.ListTodos(r.Context(), pageSize, page)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	out := types.Page{Count: res.Count, Results: res.Todos}
	if res.HasNext {
		out.Next = h.pageLink(page+1, pageSize)
	}
	if res.HasPrevious {
		out.Previous = h.pageLink(page-1, pageSize)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /todos. With an Idempotency-Key header a retried
// request returns the todo created by the first one with status 200.
func (h *TodosHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_todo"

	key, err := parseIdempotencyKey(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	req, err := decodeTodoRequest(w, r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	in, err := req.toCreate()
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	var (
		todo     model.Todo
		replayed bool
	)
	if key == "" {
		todo, err = h.deps.CreateTodo(r.Context(), in)
	} else {
		todo, replayed, err = h.deps.CreateTodoOnce(r.Context(), key, in)
	}
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	w.Header().Set("Location", "/todos/"+strconv.FormatInt(todo.ID, 10))
	if replayed {
		w.Header().Set(HeaderIdempotentReplayed, "true")
		writeJSON(w, http.StatusOK, todo)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

// HandleGet handles GET /todos/{id}.
func (h *TodosHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_todo"

	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	todo, err := h.deps.GetTodo(r.Context(), id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleReplace handles PUT /todos/{id}.
func (h *TodosHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	const op = "api.replace_todo"

	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	req, err := decodeTodoRequest(w, r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	in, err := req.toCreate()
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	todo, err := h.deps.ReplaceTodo(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandlePatch handles PATCH /todos/{id}.
func (h *TodosHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_todo"

	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	req, err := decodeTodoRequest(w, r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	todo, err := h.deps.PatchTodo(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleDelete handles DELETE /todos/{id}. It answers 200 with an empty body
// whether or not the todo existed.
func (h *TodosHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_todo"

	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if err := h.deps.DeleteTodo(r.Context(), id); err != nil {
		h.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *TodosHandler) pageLink(page, pageSize int) *string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	link := h.publicURL + "/todos?" + q.Encode()
	return &link
}

// fail maps err to a response: validation -> 400, missing todo or page -> 404,
// anything else -> 500.
func (h *TodosHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		for field := range ve.Fields {
			metrics.RecordValidationFailure(field)
		}
		writeError(w, http.StatusBadRequest, "bad_request", ve.Message, ve.Fields)
	case errors.Is(err, repository.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid pagination parameters", nil)
	case errors.Is(err, repository.ErrPageNotFound):
		writeError(w, http.StatusNotFound, "not_found", "That page does not exist", nil)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Inexistent todo", nil)
	default:
		if h.logger != nil {
			h.logger.Error(r.Context(), "request failed",
				logger.String("request_id", RequestIDFromContext(r.Context())),
				logger.Error(WrapKind(op, ErrInternal, err)))
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "", nil)
	}
}
