package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/memoryflow/internal/activity"
	"github.com/conorfennell/memoryflow/internal/domain"
	"github.com/conorfennell/memoryflow/internal/review"
	"github.com/conorfennell/memoryflow/internal/storage"
	"github.com/conorfennell/memoryflow/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	router   *http.ServeMux
	review   *review.Scheduler
	loc      *time.Location
	now      func() time.Time
	syncOpts sync.Options
	logger   *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLocation sets the time zone used for day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// WithSyncOptions sets the options used by POST /sync.
func WithSyncOptions(opts sync.Options) Option {
	return func(s *Server) { s.syncOpts = opts }
}

// WithLogger sets the request error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, rs *review.Scheduler, opts ...Option) *Server {
	s := &Server{
		db:     db,
		router: http.NewServeMux(),
		review: rs,
		loc:    time.UTC,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.syncOpts.Now = s.clock
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// clock returns the current time in the server's location, so day
// boundaries used by the scheduler match the user's calendar.
func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /items", s.handleListItems())
	s.router.HandleFunc("POST /items", s.handleCreateItem())
	s.router.HandleFunc("DELETE /items/{id}", s.handleDeleteItem())
	s.router.HandleFunc("POST /items/{id}/remember", s.handleTransition(s.review.Remember))
	s.router.HandleFunc("POST /items/{id}/forget", s.handleTransition(s.review.Forget))

	s.router.HandleFunc("GET /activity", s.handleActivity())
	s.router.HandleFunc("GET /activity/{date}", s.handleActivityDay())

	// Source management routes
	s.router.HandleFunc("GET /sources", s.handleGetSources())
	s.router.HandleFunc("POST /sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

// itemView is an item together with its current classification.
type itemView struct {
	domain.Item
	Classification review.Classification `json:"classification"`
}

type groupView struct {
	Key   review.GroupKey `json:"key"`
	Items []itemView      `json:"items"`
}

func (s *Server) view(it domain.Item, now time.Time) (itemView, error) {
	c, err := s.review.Classify(it, now)
	if err != nil {
		return itemView{}, err
	}
	return itemView{Item: it, Classification: c}, nil
}

// handleListItems returns all live items in display order.
func (s *Server) handleListItems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.db.LoadItems(r.Context())
		if err != nil {
			s.serverError(w, "Error loading items", err)
			return
		}

		now := s.clock()
		buckets, err := s.review.Partition(items, now)
		if err != nil {
			s.serverError(w, "Error partitioning items", err)
			return
		}

		groups := buckets.Groups()
		out := make([]groupView, len(groups))
		for i, g := range groups {
			out[i] = groupView{Key: g.Key, Items: make([]itemView, 0, len(g.Items))}
			for _, it := range g.Items {
				v, err := s.view(it, now)
				if err != nil {
					s.serverError(w, "Error classifying item", err)
					return
				}
				out[i].Items = append(out[i].Items, v)
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"groups": out})
	}
}

type createItemRequest struct {
	Title    string          `json:"title"`
	Body     string          `json:"body"`
	ImageURL string          `json:"image_url"`
	Mask     json.RawMessage `json:"mask"`
}

// handleCreateItem stores a new note, due immediately.
func (s *Server) handleCreateItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Body) == "" && req.ImageURL == "" {
			writeError(w, http.StatusBadRequest, "Body cannot be empty")
			return
		}

		now := s.clock()
		item := domain.NewItem(uuid.NewString(), strings.TrimSpace(req.Title), req.Body, now)
		item.ImageURL = req.ImageURL
		item.Mask = req.Mask

		if err := s.db.SaveItem(r.Context(), item); err != nil {
			s.serverError(w, "Error saving item", err)
			return
		}
		v, err := s.view(item, now)
		if err != nil {
			s.serverError(w, "Error classifying item", err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

// handleDeleteItem soft-deletes an item.
func (s *Server) handleDeleteItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		err := s.db.DeleteItem(r.Context(), id, s.clock())
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}
		if err != nil {
			s.serverError(w, "Error deleting item", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type transitionResponse struct {
	Item    itemView `json:"item"`
	Changed bool     `json:"changed"`
	Logged  bool     `json:"logged"`
}

// handleTransition applies a remember or forget decision and commits it.
func (s *Server) handleTransition(decide func(domain.Item, time.Time) (review.Transition, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		item, err := s.db.FindItem(r.Context(), id)
		if err != nil {
			s.serverError(w, "Error finding item", err)
			return
		}
		if item == nil || item.Deleted() {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}

		now := s.clock()
		tr, err := decide(*item, now)
		switch {
		case errors.Is(err, review.ErrIllegalTransition):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, review.ErrInvalidItemState):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		case err != nil:
			s.serverError(w, "Error deciding transition", err)
			return
		}

		if err := s.db.ApplyTransition(r.Context(), tr); err != nil {
			s.serverError(w, "Error applying transition", err)
			return
		}

		v, err := s.view(tr.Item, now)
		if err != nil {
			s.serverError(w, "Error classifying item", err)
			return
		}
		writeJSON(w, http.StatusOK, transitionResponse{Item: v, Changed: tr.Changed, Logged: tr.Log != nil})
	}
}

// handleActivity returns the study calendar for ?month=YYYY-MM, defaulting to this month.
func (s *Server) handleActivity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.clock()
		year, month := now.Year(), now.Month()
		if m := r.URL.Query().Get("month"); m != "" {
			t, err := time.ParseInLocation("2006-01", m, s.loc)
			if err != nil {
				writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
				return
			}
			year, month = t.Year(), t.Month()
		}

		// Deleted notes keep their creation day on the calendar.
		created, err := s.db.LoadCreationTimes(r.Context())
		if err != nil {
			s.serverError(w, "Error loading creation times", err)
			return
		}
		logs, err := s.db.LoadLogs(r.Context(), time.Unix(0, 0), now.Add(time.Second))
		if err != nil {
			s.serverError(w, "Error loading study logs", err)
			return
		}

		studied := make([]time.Time, len(logs))
		for i, l := range logs {
			studied[i] = l.Timestamp
		}

		writeJSON(w, http.StatusOK, activity.Month(year, month, s.loc, now, created, studied))
	}
}

// handleActivityDay lists the live notes created on /activity/YYYY-MM-DD.
func (s *Server) handleActivityDay() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := time.ParseInLocation("2006-01-02", r.PathValue("date"), s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}

		items, err := s.db.LoadItems(r.Context())
		if err != nil {
			s.serverError(w, "Error loading items", err)
			return
		}

		now := s.clock()
		created := activity.CreatedOn(items, date, s.loc)
		out := make([]itemView, 0, len(created))
		for _, it := range created {
			v, err := s.view(it, now)
			if err != nil {
				s.serverError(w, "Error classifying item", err)
				return
			}
			out = append(out, v)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"date": date.Format("2006-01-02"), "items": out})
	}
}

// handleGetSources lists the configured note sources.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.serverError(w, "Error getting sources", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
	}
}

// handlePostSource adds a new source.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "Path cannot be empty")
			return
		}

		sourceType := sync.SourceType(req.Path)
		id, err := s.db.InsertSource(r.Context(), req.Path, sourceType)
		if err != nil {
			s.serverError(w, "Error inserting new source", err)
			return
		}
		writeJSON(w, http.StatusCreated, storage.Source{ID: id, Path: req.Path, Type: sourceType})
	}
}

// handleDeleteSource deletes a source and its imported items.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid source ID")
			return
		}

		err = s.db.DeleteSource(r.Context(), id, s.clock())
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		if err != nil {
			s.serverError(w, "Error deleting source", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync runs a sync in the foreground and reports what changed.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := sync.Run(r.Context(), s.db, s.syncOpts)
		if err != nil {
			s.serverError(w, "Error running sync", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
