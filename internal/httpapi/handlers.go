package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"syncdal/internal/dal/adapter"
	"syncdal/internal/dal/cache"
	"syncdal/internal/dal/queue"
	"syncdal/internal/dal/types"
	"syncdal/internal/errors"
)

var validate = validator.New()

// QueueParamsDTO is the wire form of the dispatch-queue parameters.
type QueueParamsDTO struct {
	Mode             string `json:"mode" validate:"required,oneof=primary-read-primary-write primary-read-all-write all-read-all-write"`
	MaxReadFailures  int    `json:"max_read_failures" validate:"min=1"`
	MaxWriteFailures int    `json:"max_write_failures" validate:"min=1"`
	FailureAction    string `json:"failure_action" validate:"required,oneof=ignore drop drop-unless-last push-to-back reconnect"`
}

// CacheParamsDTO is the wire form of the write-back-cache parameters.
type CacheParamsDTO struct {
	MaxCommitIntervalMS int  `json:"max_commit_interval_ms" validate:"min=1"`
	MaxCommitUpdates    int  `json:"max_commit_updates" validate:"min=1"`
	MinCommitUpdates    int  `json:"min_commit_updates" validate:"min=0"`
	MaxCacheSize        int  `json:"max_cache_size" validate:"min=1"`
	AlwaysEvict         bool `json:"always_evict"`
	ClearObjectAge      bool `json:"clear_object_age"`
}

// TimeoutDTO is the wire form of the shared call timeout.
type TimeoutDTO struct {
	TimeoutMS int `json:"timeout_ms" validate:"min=1"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Validation("malformed request body").WithCause(err)
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Validation(err.Error())
	}
	return nil
}

func kindParam(r *http.Request) (types.Kind, error) {
	k := types.Kind(chi.URLParam(r, "kind"))
	for _, known := range types.AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", errors.Validation("unknown entity kind").WithDetail("kind", string(k))
}

func adapterIDParam(r *http.Request) (adapter.AdapterID, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, "adapterID"), 10, 32)
	if err != nil {
		return 0, errors.Validation("adapter id must be an unsigned integer").WithCause(err)
	}
	return adapter.AdapterID(n), nil
}

// handleHealth godoc
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetQueueInfo godoc
// @Summary      Dispatch queue snapshot for one entity kind
// @Tags         queues
// @Produce      json
// @Param        kind path string true "entity kind"
// @Success      200 {object} queue.QueueInfo
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/queues/{kind} [get]
func (rt *Router) handleGetQueueInfo(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	info, ok := rt.manager.GetQueueInfo(kind)
	if !ok {
		errors.WriteError(w, errors.NotFound(""))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleGetQueueParams godoc
// @Summary      Current dispatch queue parameters
// @Tags         queues
// @Produce      json
// @Param        kind path string true "entity kind"
// @Success      200 {object} QueueParamsDTO
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/queues/{kind}/params [get]
func (rt *Router) handleGetQueueParams(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	p, ok := rt.manager.GetQueueParams(kind)
	if !ok {
		errors.WriteError(w, errors.NotFound(""))
		return
	}
	writeJSON(w, http.StatusOK, QueueParamsDTO{
		Mode:             p.Mode.String(),
		MaxReadFailures:  p.MaxReadFailures,
		MaxWriteFailures: p.MaxWriteFailures,
		FailureAction:    p.FailureAction.String(),
	})
}

// handleSetQueueParams godoc
// @Summary      Replace the dispatch queue parameters of one entity kind
// @Tags         queues
// @Accept       json
// @Produce      json
// @Param        kind path string true "entity kind"
// @Param        params body QueueParamsDTO true "new parameters"
// @Success      200 {object} QueueParamsDTO
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/queues/{kind}/params [put]
func (rt *Router) handleSetQueueParams(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	var dto QueueParamsDTO
	if err := decodeAndValidate(r, &dto); err != nil {
		errors.WriteError(w, err)
		return
	}
	mode, err := queue.ParseReplicationMode(dto.Mode)
	if err != nil {
		errors.WriteError(w, errors.Validation(err.Error()))
		return
	}
	action, err := queue.ParseFailureAction(dto.FailureAction)
	if err != nil {
		errors.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if !rt.manager.SetQueueParams(kind, queue.Params{
		Mode:             mode,
		MaxReadFailures:  dto.MaxReadFailures,
		MaxWriteFailures: dto.MaxWriteFailures,
		FailureAction:    action,
	}) {
		errors.WriteError(w, errors.NotFound(""))
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleGetCachesInfo godoc
// @Summary      Write-back cache snapshots for one entity kind
// @Tags         caches
// @Produce      json
// @Param        kind path string true "entity kind"
// @Success      200 {array} cache.CacheInfo
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/caches/{kind} [get]
func (rt *Router) handleGetCachesInfo(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.manager.GetCachesInfo(kind))
}

// handleGetCacheParams godoc
// @Summary      Current write-back cache parameters of one adapter slot
// @Tags         caches
// @Produce      json
// @Param        kind path string true "entity kind"
// @Param        adapterID path int true "adapter id"
// @Success      200 {object} CacheParamsDTO
// @Failure      404 {object} errors.ErrorResponse
// @Router       /api/v1/caches/{kind}/{adapterID}/params [get]
func (rt *Router) handleGetCacheParams(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	id, err := adapterIDParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	p, ok := rt.manager.GetCacheParams(kind, id)
	if !ok {
		errors.WriteError(w, errors.NotFound(""))
		return
	}
	writeJSON(w, http.StatusOK, CacheParamsDTO{
		MaxCommitIntervalMS: int(p.MaxCommitInterval / time.Millisecond),
		MaxCommitUpdates:    p.MaxCommitUpdates,
		MinCommitUpdates:    p.MinCommitUpdates,
		MaxCacheSize:        p.MaxCacheSize,
		AlwaysEvict:         p.AlwaysEvict,
		ClearObjectAge:      p.ClearObjectAge,
	})
}

// handleSetCacheParams godoc
// @Summary      Replace the write-back cache parameters of one adapter slot
// @Tags         caches
// @Accept       json
// @Produce      json
// @Param        kind path string true "entity kind"
// @Param        adapterID path int true "adapter id"
// @Param        params body CacheParamsDTO true "new parameters"
// @Success      200 {object} CacheParamsDTO
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/caches/{kind}/{adapterID}/params [put]
func (rt *Router) handleSetCacheParams(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	id, err := adapterIDParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	var dto CacheParamsDTO
	if err := decodeAndValidate(r, &dto); err != nil {
		errors.WriteError(w, err)
		return
	}
	if dto.MinCommitUpdates > dto.MaxCommitUpdates {
		errors.WriteError(w, errors.Validation("min_commit_updates exceeds max_commit_updates"))
		return
	}
	if !rt.manager.SetCacheParams(kind, id, cache.Params{
		MaxCommitInterval: time.Duration(dto.MaxCommitIntervalMS) * time.Millisecond,
		MaxCommitUpdates:  dto.MaxCommitUpdates,
		MinCommitUpdates:  dto.MinCommitUpdates,
		MaxCacheSize:      dto.MaxCacheSize,
		AlwaysEvict:       dto.AlwaysEvict,
		ClearObjectAge:    dto.ClearObjectAge,
	}) {
		errors.WriteError(w, errors.NotFound(""))
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleGetAdaptersInfo godoc
// @Summary      Adapter snapshots for one entity kind
// @Tags         adapters
// @Produce      json
// @Param        kind path string true "entity kind"
// @Success      200 {array} adapter.Info
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/adapters/{kind} [get]
func (rt *Router) handleGetAdaptersInfo(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.manager.GetAdaptersInfo(kind))
}

// handleGetTimeout godoc
// @Summary      Shared synchronous call timeout
// @Tags         system
// @Produce      json
// @Success      200 {object} TimeoutDTO
// @Router       /api/v1/timeout [get]
func (rt *Router) handleGetTimeout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TimeoutDTO{
		TimeoutMS: int(rt.manager.GetCallTimeout() / time.Millisecond),
	})
}

// handleSetTimeout godoc
// @Summary      Replace the shared synchronous call timeout
// @Tags         system
// @Accept       json
// @Produce      json
// @Param        timeout body TimeoutDTO true "new timeout"
// @Success      200 {object} TimeoutDTO
// @Failure      400 {object} errors.ErrorResponse
// @Router       /api/v1/timeout [put]
func (rt *Router) handleSetTimeout(w http.ResponseWriter, r *http.Request) {
	var dto TimeoutDTO
	if err := decodeAndValidate(r, &dto); err != nil {
		errors.WriteError(w, err)
		return
	}
	rt.manager.SetCallTimeout(time.Duration(dto.TimeoutMS) * time.Millisecond)
	writeJSON(w, http.StatusOK, dto)
}
