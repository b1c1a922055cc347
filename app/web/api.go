package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/jobboard/app/web/persistence"
)

// APIPosting is a posting summary in JSON API response
type APIPosting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	JobType     string    `json:"job_type"`
	SalaryRange string    `json:"salary_range"`
	PostedDate  time.Time `json:"posted_date"`
}

// APIPostingDetails is a complete posting in JSON API response
type APIPostingDetails struct {
	APIPosting
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	HowToApply   string `json:"how_to_apply"`
}

func toAPIPosting(p persistence.Posting) APIPosting {
	return APIPosting{
		ID:          p.ID,
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		JobType:     p.JobType.String(),
		SalaryRange: p.SalaryRange,
		PostedDate:  p.PostedDate,
	}
}

// handleHealth reports liveness, store is not touched
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, rest.JSON{"status": "ok"})
}

// handleAPIJobs returns filtered postings, same filter semantics as the index page
func (s *Server) handleAPIJobs(w http.ResponseWriter, r *http.Request) {
	postings, err := s.store.List(r.Context(), filterFromQuery(r))
	if err != nil {
		log.Printf("[ERROR] failed to list postings: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load jobs")
		return
	}

	resp := make([]APIPosting, 0, len(postings))
	for _, p := range postings {
		resp = append(resp, toAPIPosting(p))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIJob returns a single posting with all fields
func (s *Server) handleAPIJob(w http.ResponseWriter, r *http.Request) {
	p, err := s.postingFromPath(r)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("[ERROR] failed to get posting %s: %v", r.PathValue("id"), err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	s.writeJSON(w, http.StatusOK, APIPostingDetails{
		APIPosting:   toAPIPosting(p),
		Description:  p.Description,
		Requirements: p.Requirements,
		HowToApply:   p.HowToApply,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, rest.JSON{"error": message})
}
