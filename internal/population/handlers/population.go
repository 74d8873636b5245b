package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/population"
	"multiverse-server/internal/shared/errors"
	"multiverse-server/internal/shared/response"
)

// PopulationDetail is the full JSON view of a stored population.
type PopulationDetail struct {
	Record     population.Record  `json:"record"`
	Population *cosmos.Population `json:"population"`
}

type PopulationHandler struct {
	service *population.Service
}

func NewPopulationHandler(service *population.Service) *PopulationHandler {
	return &PopulationHandler{service: service}
}

// ServeHTTP dispatches the collection endpoint by method.
func (h *PopulationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		response.Error(w, r, slog.With("handler", "populations"), errors.MethodNotAllowed(r.Method))
	}
}

func (h *PopulationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "create_population")

	var req population.CreateRequest
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
			return
		}
	}

	result, err := h.service.Create(ctx, req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, result)
}

func (h *PopulationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_populations")

	records, err := h.service.List(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if records == nil {
		records = []population.Record{}
	}

	response.Success(w, http.StatusOK, records)
}

func (h *PopulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_population")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("population ID is required"))
		return
	}

	stored, err := h.service.Get(ctx, id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, PopulationDetail{Record: stored.Record, Population: stored.Population})
}

func (h *PopulationHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_generation")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("population ID is required"))
		return
	}

	generation, err := strconv.Atoi(r.PathValue("generation"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid generation format", err))
		return
	}

	children, err := h.service.Children(ctx, id, generation)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, children)
}

func (h *PopulationHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_population_statistics")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("population ID is required"))
		return
	}

	stats, err := h.service.Statistics(ctx, id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, stats)
}

func (h *PopulationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "delete_population")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("population ID is required"))
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
