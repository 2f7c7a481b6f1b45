package apitest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lshigami/iqtester/internal/dto"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type startRequest struct {
	TestID dto.FlexID `json:"test_id" binding:"required"`
}

type submitRequest struct {
	AttemptID string          `json:"attemptId" binding:"required"`
	Answers   []dto.AnswerDTO `json:"answers"`
}

var validate = validator.New()

const userKey = "apitest_user"

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: err.Error()})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		log.Debug().Str("username", req.Username).Msg("Fake API: rejected login")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Detail: "No active account found with the given credentials"})
		return
	}

	now := s.now()
	c.JSON(http.StatusOK, dto.TokenPairResponse{
		Access:  NewAccessToken(s.id(u.id), u.username, u.email, now.Add(s.tokenTTL)),
		Refresh: newRefreshToken(s.id(u.id), now.Add(24*time.Hour)),
	})
}

func (s *Server) register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Detail: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := make(map[string][]string)
	switch {
	case strings.TrimSpace(req.Username) == "":
		fields["username"] = []string{"This field is required."}
	case s.users[req.Username] != nil:
		fields["username"] = []string{"A user with that username already exists."}
	}
	switch {
	case req.Email == "":
		fields["email"] = []string{"This field is required."}
	case validate.Var(req.Email, "email") != nil:
		fields["email"] = []string{"Enter a valid email address."}
	}
	switch {
	case req.Password == "":
		fields["password"] = []string{"This field is required."}
	case len(req.Password) < 8:
		fields["password"] = []string{"This password is too short. It must contain at least 8 characters."}
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, fields)
		return
	}

	u := s.addUser(req.Username, req.Email, req.Password)
	c.JSON(http.StatusCreated, gin.H{"id": s.id(u.id), "username": u.username, "email": u.email})
}

func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Detail: "Authentication credentials were not provided."})
		return
	}

	username, err := parseAccessToken(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Detail: "Given token not valid for any token type"})
		return
	}

	s.mu.Lock()
	u := s.users[username]
	s.mu.Unlock()
	if u == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Detail: "User not found"})
		return
	}
	c.Set(userKey, u)
	c.Next()
}

func (s *Server) listTests(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]gin.H, 0, len(s.tests))
	for _, t := range s.tests {
		resp = append(resp, s.testJSON(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listQuestions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]gin.H, 0)
	if t := s.findTest(c.Query("test_id")); t != nil {
		for _, q := range t.questions {
			resp = append(resp, gin.H{
				"id":      s.id(q.id),
				"text":    q.Text,
				"option1": q.Options[0],
				"option2": q.Options[1],
				"option3": q.Options[2],
				"option4": q.Options[3],
			})
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) startAttempt(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	u := c.MustGet(userKey).(*user)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findTest(string(req.TestID))
	if t == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "test not found"})
		return
	}

	a := &attempt{id: uuid.NewString(), userID: u.id, test: t}
	s.attempts[a.id] = a
	c.JSON(http.StatusCreated, gin.H{"attemptId": a.id})
}

func (s *Server) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	u := c.MustGet(userKey).(*user)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[req.AttemptID]
	if !ok || a.userID != u.id {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "attempt not found"})
		return
	}
	if a.submitted {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "attempt already submitted"})
		return
	}

	a.submitted = true
	a.answers = req.Answers
	iq := score(a.test, req.Answers)

	s.nextEntry++
	u.history = append(u.history, historyEntry{id: s.nextEntry, score: iq, at: s.now(), test: a.test})
	log.Debug().Str("attempt_id", a.id).Int("answers", len(req.Answers)).Float64("iq_score", iq).Msg("Fake API: attempt scored")

	c.JSON(http.StatusOK, dto.SubmissionResponse{IQScore: iq})
}

func (s *Server) history(c *gin.Context) {
	u := c.MustGet(userKey).(*user)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := make([]gin.H, 0, len(u.history))
	for i := len(u.history) - 1; i >= 0; i-- {
		e := u.history[i]
		entry := gin.H{
			"id":    s.id(e.id),
			"score": e.score,
			"test":  s.testJSON(e.test),
		}
		if s.stringIDs {
			entry["submittedAt"] = e.at
		} else {
			entry["created_at"] = e.at
		}
		resp = append(resp, entry)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) testJSON(t *test) gin.H {
	return gin.H{
		"id":                 s.id(t.id),
		"name":               t.name,
		"description":        t.description,
		"time_limit_minutes": t.minutes,
	}
}
