package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taskapi/internal/models"
)

const maxBodyBytes = 1 << 20

// Adapter is the set of record operations a resource exposes over HTTP.
type Adapter[T any] interface {
	Resource() string
	Create(ctx context.Context, input models.Fields) (T, error)
	Get(ctx context.Context, id int64) (T, error)
	List(ctx context.Context) ([]T, error)
	Update(ctx context.Context, id int64, input models.Fields) (T, error)
	Delete(ctx context.Context, id int64) error
}

// resource serves the five CRUD routes of one record type. Each route calls
// one adapter operation, except that an update with an unreadable body
// first checks the id so a missing record is still reported as such.
type resource[T any] struct {
	adapter Adapter[T]
}

func newResource[T any](adapter Adapter[T]) resource[T] {
	return resource[T]{adapter: adapter}
}

func (rs resource[T]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", rs.Create)
	r.Get("/", rs.List)
	r.Get("/{id}", rs.Get)
	r.Put("/{id}", rs.Update)
	r.Delete("/{id}", rs.Delete)
	return r
}

func (rs resource[T]) Create(w http.ResponseWriter, r *http.Request) {
	input, err := readFields(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := rs.adapter.Create(r.Context(), input)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (rs resource[T]) List(w http.ResponseWriter, r *http.Request) {
	records, err := rs.adapter.List(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (rs resource[T]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		rs.notFound(w, r)
		return
	}

	record, err := rs.adapter.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (rs resource[T]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		rs.notFound(w, r)
		return
	}

	input, err := readFields(w, r)
	if err != nil {
		if _, getErr := rs.adapter.Get(r.Context(), id); getErr != nil {
			respondStoreError(w, r, getErr)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := rs.adapter.Update(r.Context(), id, input)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (rs resource[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		rs.notFound(w, r)
		return
	}

	if err := rs.adapter.Delete(r.Context(), id); err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (rs resource[T]) notFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", rs.adapter.Resource(), chi.URLParam(r, "id")))
}

// readFields decodes a JSON object or a form body into string fields. An
// empty body yields no fields.
func readFields(w http.ResponseWriter, r *http.Request) (models.Fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return readForm(r)
	default:
		return readJSON(r.Body)
	}
}

func readForm(r *http.Request) (models.Fields, error) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errors.New("invalid form data")
	}
	fields := models.Fields{}
	for name, values := range r.PostForm {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}
	return fields, nil
}

func readJSON(body io.Reader) (models.Fields, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Fields{}, nil
		}
		return nil, errors.New("invalid json")
	}

	fields := make(models.Fields, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			fields[name] = v
		case json.Number:
			fields[name] = v.String()
		case bool:
			fields[name] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("%s must be a string or number", name)
		}
	}
	return fields, nil
}
