package adminServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lpstake/lpstake/pkg/scheduler"
	"go.uber.org/zap"
)

type jobStatusResponse struct {
	Name   string              `json:"name"`
	Status scheduler.JobStatus `json:"status"`
}

func (s *AdminServer) knownJob(name string) bool {
	for _, job := range s.jobs.List() {
		if job.Name == name {
			return true
		}
	}
	return false
}

func (s *AdminServer) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.jobs.List()})
}

func (s *AdminServer) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	respondWithJSON(w, http.StatusOK, &jobStatusResponse{Name: name, Status: s.jobs.Status(name)})
}

func (s *AdminServer) StartJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.jobs.Start(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Sugar().Errorw("Failed to start job", zap.String("job", name), zap.Error(err))
		respondWithJSON(w, http.StatusOK, &operationResponse{Success: false, Message: err.Error()})
		return
	}
	respondWithJSON(w, http.StatusOK, &operationResponse{Success: true, Message: fmt.Sprintf("job '%s' started", name)})
}

func (s *AdminServer) StopJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.knownJob(name) {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("unknown job '%s'", name))
		return
	}
	if err := s.jobs.Stop(name); err != nil {
		respondWithJSON(w, http.StatusOK, &operationResponse{Success: false, Message: fmt.Sprintf("job '%s' is not running", name)})
		return
	}
	respondWithJSON(w, http.StatusOK, &operationResponse{Success: true, Message: fmt.Sprintf("job '%s' stopped", name)})
}

func (s *AdminServer) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.knownJob(name) {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("unknown job '%s'", name))
		return
	}
	// a client disconnect must not abort a run that is already notifying users
	result := s.jobs.RunNow(context.WithoutCancel(r.Context()), name)
	respondWithJSON(w, http.StatusOK, result)
}
