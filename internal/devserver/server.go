// Package devserver is an in-memory stand-in for the banking backend: it
// issues tokens, serves the notification REST endpoints and pushes frames
// over /ws. It backs local development and the integration tests.
package devserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	gosync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// naiveLayout matches Python's datetime.isoformat() for naive UTC values.
const naiveLayout = "2006-01-02T15:04:05.000000"

type user struct {
	ID       int64
	Username string
	Password string
}

// record is a stored notification, shaped like the backend's response
// model (integer ids, naive timestamps).
type record struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"user_id"`
	Type         string  `json:"type"`
	Category     string  `json:"category,omitempty"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	RelatedID    *int64  `json:"related_id"`
	IsRead       bool    `json:"is_read"`
	ReadAt       *string `json:"read_at"`
	CreatedAt    string  `json:"created_at"`
	FromUserID   *int64  `json:"from_user_id"`
	FromUserName *string `json:"from_user_name"`

	created time.Time
}

// Server is the fake backend. All methods are safe for concurrent use.
type Server struct {
	secret []byte
	log    *zap.Logger
	now    func() time.Time
	router chi.Router

	upgrader websocket.Upgrader

	mu            gosync.Mutex
	users         map[string]*user
	nextUserID    int64
	nextNotifID   int64
	notifications map[int64][]*record
	clients       map[int64]map[*client]struct{}
	accepted      int
}

// Option customises a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithClock overrides time.Now for created_at and read_at stamps.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New creates a server signing tokens with secret.
func New(secret string, opts ...Option) *Server {
	s := &Server{
		secret:        []byte(secret),
		log:           zap.NewNop(),
		now:           time.Now,
		users:         make(map[string]*user),
		notifications: make(map[int64][]*record),
		clients:       make(map[int64]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/auth/login", s.handleLogin)
	r.Get("/ws", s.handleWS)

	r.Route("/api/notifications", func(nr chi.Router) {
		nr.Use(s.requireUser)
		nr.Get("/", s.handleList)
		nr.Get("/stats", s.handleStats)
		nr.Put("/mark-all-read", s.handleMarkAllRead)
		nr.Put("/{id}", s.handleUpdate)
		nr.Delete("/{id}", s.handleDelete)
	})

	r.Route("/dev", func(dr chi.Router) {
		dr.Post("/notify", s.handleDevNotify)
		dr.Post("/transaction", s.handleDevTransaction)
		dr.Post("/drop", s.handleDevDrop)
	})

	return r
}

// AddUser registers a login and returns its id.
func (s *Server) AddUser(username, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[username]; ok {
		u.Password = password
		return u.ID
	}
	s.nextUserID++
	s.users[username] = &user{ID: s.nextUserID, Username: username, Password: password}
	return s.nextUserID
}

func (s *Server) userByID(id int64) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// sortedLocked returns the user's notifications newest-first.
func (s *Server) sortedLocked(userID int64) []*record {
	list := append([]*record(nil), s.notifications[userID]...)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].created.Equal(list[j].created) {
			return list[i].ID > list[j].ID
		}
		return list[i].created.After(list[j].created)
	})
	return list
}

func (s *Server) findLocked(userID, id int64) (int, *record) {
	for i, r := range s.notifications[userID] {
		if r.ID == id {
			return i, r
		}
	}
	return -1, nil
}

func (s *Server) stamp() string {
	return s.now().UTC().Format(naiveLayout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a FastAPI-style error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
