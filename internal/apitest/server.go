// Package apitest runs an in-memory implementation of the IQ test HTTP API
// for tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Endpoints as counted by Calls.
const (
	EndpointLogin     = "POST /api/auth/login/"
	EndpointRegister  = "POST /api/auth/register/"
	EndpointTests     = "GET /api/tests/"
	EndpointQuestions = "GET /api/questions/"
	EndpointStart     = "POST /api/results/start/"
	EndpointSubmit    = "POST /api/results/submit/"
	EndpointHistory   = "GET /api/results/history/"
)

// Server is a running fake API. All state lives in memory and is safe for
// concurrent handlers.
type Server struct {
	*httptest.Server

	stringIDs bool
	tokenTTL  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	users     map[string]*user
	nextUser  int
	tests     []*test
	attempts  map[string]*attempt
	nextEntry int
	calls     map[string]int
	failures  map[string]int
	delays    map[string]time.Duration
}

type Option func(*Server)

// WithStringIDs makes the server emit ids as JSON strings and history
// timestamps as submittedAt, like the document-store backend.
func WithStringIDs() Option {
	return func(s *Server) { s.stringIDs = true }
}

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// New starts a server seeded with one user ("alice"/"secret123") and one
// three-question test. It is closed when the test finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		tokenTTL: time.Hour,
		now:      time.Now,
		users:    make(map[string]*user),
		attempts: make(map[string]*attempt),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seed()

	s.Server = httptest.NewServer(s.engine())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root the client should be configured with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// Calls returns how many requests reached endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// FailNext makes the next request to endpoint answer with status.
func (s *Server) FailNext(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = status
}

// Delay holds every request to endpoint for d before it is handled.
func (s *Server) Delay(endpoint string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[endpoint] = d
}

func (s *Server) engine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Debug().
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("request_id", param.Request.Header.Get("X-Request-ID")).
			Msg("fake_api_request")
		return ""
	}))
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(s.countAndFail)

	api := r.Group("/api")
	{
		api.POST("/auth/login/", s.login)
		api.POST("/auth/register/", s.register)
	}

	authed := api.Group("", s.requireAuth)
	{
		authed.GET("/tests/", s.listTests)
		authed.GET("/questions/", s.listQuestions)
		authed.POST("/results/start/", s.startAttempt)
		authed.POST("/results/submit/", s.submit)
		authed.GET("/results/history/", s.history)
	}
	return r
}

func (s *Server) countAndFail(c *gin.Context) {
	endpoint := c.Request.Method + " " + c.FullPath()

	s.mu.Lock()
	s.calls[endpoint]++
	status, fail := s.failures[endpoint]
	delete(s.failures, endpoint)
	delay := s.delays[endpoint]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if fail {
		c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.Next()
}
