package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobboard/app/web/enums"
	"github.com/umputun/jobboard/app/web/persistence"
	"github.com/umputun/jobboard/app/web/request"
)

// handleIndex renders postings list filtered by q and type query params
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	postings, err := s.store.List(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to list postings: %v", err)
		http.Error(w, "Failed to load jobs", http.StatusInternalServerError)
		return
	}

	data := s.newTemplateData(w, r)
	data.Postings = postings
	data.Query = filter.Query
	data.Type = filter.JobType.String()
	s.render(w, http.StatusOK, "index", data)
}

// handleJobDetail renders a single posting
func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	posting, err := s.postingFromPath(r)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] failed to get posting %s: %v", r.PathValue("id"), err)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	data := s.newTemplateData(w, r)
	data.Posting = posting
	s.render(w, http.StatusOK, "detail", data)
}

// handlePostForm renders empty posting form
func (s *Server) handlePostForm(w http.ResponseWriter, r *http.Request) {
	admin, _ := adminFrom(r.Context())
	data := s.newTemplateData(w, r)
	data.Username = admin.User
	s.render(w, http.StatusOK, "post_job", data)
}

// handleCreatePosting validates submitted form and stores a new posting.
// Invalid input re-renders the form with 400, store failure re-renders it with the error.
func (s *Server) handleCreatePosting(w http.ResponseWriter, r *http.Request) {
	admin, ok := adminFrom(r.Context())
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	form := request.ParseNewPosting(r.PostForm)
	jobType, err := form.Validate()
	if err != nil {
		log.Printf("[DEBUG] rejected posting from %s: %v", admin.User, err)
		s.renderPostForm(w, r, http.StatusBadRequest, admin, form, err)
		return
	}

	created, err := s.store.Create(r.Context(), persistence.Posting{
		Title:        form.Title,
		Company:      form.Company,
		Location:     form.Location,
		JobType:      jobType,
		Description:  form.Description,
		Requirements: form.Requirements,
		SalaryRange:  form.SalaryRange,
		HowToApply:   form.HowToApply,
	})
	if err != nil {
		log.Printf("[WARN] failed to create posting %q: %v", form.Title, err)
		s.renderPostForm(w, r, http.StatusOK, admin, form, err)
		return
	}
	log.Printf("[INFO] posting %d %q created by %s", created.ID, created.Title, admin.User)

	s.notifyCreated(r.Context(), created)

	s.setFlash(w, r, enums.FlashKindSuccess, "Job posted successfully!")
	s.redirect(w, r, "/")
}

func (s *Server) renderPostForm(w http.ResponseWriter, r *http.Request, status int, admin Admin, form request.NewPosting, err error) {
	data := s.newTemplateData(w, r)
	data.Username = admin.User
	data.Form = form
	data.Error = "Error posting job: " + err.Error()
	s.render(w, status, "post_job", data)
}

// notifyCreated calls notifier synchronously, failures are logged only
func (s *Server) notifyCreated(ctx context.Context, p persistence.Posting) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.PostingCreated(ctx, p); err != nil {
		log.Printf("[WARN] failed to send notification for posting %d: %v", p.ID, err)
	}
}

// postingFromPath loads posting by {id} path value, non-numeric ids reported as not found
func (s *Server) postingFromPath(r *http.Request) (persistence.Posting, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return persistence.Posting{}, persistence.ErrNotFound
	}
	return s.store.Get(r.Context(), id)
}

// filterFromQuery makes listing filter from q and type params, unknown type is ignored
func filterFromQuery(r *http.Request) persistence.Filter {
	q := r.URL.Query()
	f := persistence.Filter{Query: strings.TrimSpace(q.Get("q"))}
	if jt, err := enums.ParseJobType(q.Get("type")); err == nil {
		f.JobType = jt
	}
	return f
}
