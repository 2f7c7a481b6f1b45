package apitest

import (
	"strconv"
	"time"

	"github.com/lshigami/iqtester/internal/dto"
)

// Credentials of the seeded user.
const (
	DefaultUsername = "alice"
	DefaultEmail    = "alice@example.com"
	DefaultPassword = "secret123"
)

// Question is a seeded question with its correct option token.
type Question struct {
	Text    string
	Options [4]string
	Correct string
}

type user struct {
	id       int
	username string
	email    string
	password string
	history  []historyEntry
}

type test struct {
	id          int
	name        string
	description string
	minutes     int
	questions   []question
}

type question struct {
	id int
	Question
}

type attempt struct {
	id        string
	userID    int
	test      *test
	submitted bool
	answers   []dto.AnswerDTO
}

type historyEntry struct {
	id    int
	score float64
	at    time.Time
	test  *test
}

func (s *Server) seed() {
	s.addUser(DefaultUsername, DefaultEmail, DefaultPassword)
	s.addTest("Pattern Reasoning", "Spot the rule behind each sequence.", 10,
		Question{Text: "2, 4, 8, 16, ?", Options: [4]string{"32", "24", "18", "64"}, Correct: "option1"},
		Question{Text: "Which shape has the most sides?", Options: [4]string{"Triangle", "Hexagon", "Square", "Pentagon"}, Correct: "option2"},
		Question{Text: "A is taller than B, B is taller than C. Who is shortest?", Options: [4]string{"A", "B", "C", "Cannot tell"}, Correct: "option3"},
	)
}

// AddUser registers an account directly.
func (s *Server) AddUser(username, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUser(username, email, password)
}

// AddTest adds a test and returns its id as the client sees it.
func (s *Server) AddTest(name, description string, minutes int, questions ...Question) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(s.addTest(name, description, minutes, questions...).id)
}

// FirstTestID returns the id of the seeded test.
func (s *Server) FirstTestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(s.tests[0].id)
}

// QuestionIDs returns the ids of the questions of a test in order.
func (s *Server) QuestionIDs(testID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findTest(testID)
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.questions))
	for _, q := range t.questions {
		ids = append(ids, strconv.Itoa(q.id))
	}
	return ids
}

// Submission returns the answers received for an attempt.
func (s *Server) Submission(attemptID string) ([]dto.AnswerDTO, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok || !a.submitted {
		return nil, false
	}
	return a.answers, true
}

func (s *Server) addUser(username, email, password string) *user {
	s.nextUser++
	u := &user{id: s.nextUser, username: username, email: email, password: password}
	s.users[username] = u
	return u
}

func (s *Server) addTest(name, description string, minutes int, questions ...Question) *test {
	t := &test{id: len(s.tests) + 1, name: name, description: description, minutes: minutes}
	base := 0
	for _, existing := range s.tests {
		base += len(existing.questions)
	}
	for i, q := range questions {
		t.questions = append(t.questions, question{id: base + i + 1, Question: q})
	}
	s.tests = append(s.tests, t)
	return t
}

// findTest requires s.mu.
func (s *Server) findTest(id string) *test {
	for _, t := range s.tests {
		if strconv.Itoa(t.id) == id {
			return t
		}
	}
	return nil
}

func (s *Server) userByID(id int) *user {
	for _, u := range s.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

// score maps the share of correct answers onto 80..140.
func score(t *test, answers []dto.AnswerDTO) float64 {
	if len(t.questions) == 0 {
		return 80
	}
	correct := 0
	for _, a := range answers {
		for _, q := range t.questions {
			if strconv.Itoa(q.id) == a.QuestionID && q.Correct == a.Answer {
				correct++
				break
			}
		}
	}
	return 80 + 60*float64(correct)/float64(len(t.questions))
}

func (s *Server) id(n int) any {
	if s.stringIDs {
		return strconv.Itoa(n)
	}
	return n
}
