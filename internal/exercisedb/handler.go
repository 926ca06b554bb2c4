package exercisedb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type exerciseSource interface {
	SearchByName(ctx context.Context, name string) ([]Exercise, error)
	GetByID(ctx context.Context, id string) (*Exercise, error)
}

type Handler struct {
	api exerciseSource
}

func NewHandler(api exerciseSource) *Handler {
	return &Handler{
		api: api,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/exercises/search", handler.HandleSearch).Methods("GET", "OPTIONS").Name("exercises-search")
	r.HandleFunc("/exercises/{id}", handler.HandleGet).Methods("GET", "OPTIONS").Name("exercises-get")
}

func (handler *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "exercisedb.handleSearch")
	defer span.End()

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "error, name missing", http.StatusBadRequest)
		return
	}

	exercises, err := handler.api.SearchByName(ctx, name)
	if err != nil {
		log.Errorf("exercise search [%s]: %s", name, err)
		http.Error(w, "exercise db error", http.StatusBadGateway)
		return
	}

	respBytes, err := json.Marshal(exercises)
	if err != nil {
		log.Errorf("marshal exercise search results: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "exercisedb.handleGet")
	defer span.End()

	id := mux.Vars(r)["id"]
	exercise, err := handler.api.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("get exercise %s: %s", id, err)
		http.Error(w, "exercise db error", http.StatusBadGateway)
		return
	}

	respBytes, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("marshal exercise %s: %s", id, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}
