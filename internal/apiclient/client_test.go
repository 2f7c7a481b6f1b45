package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/lshigami/iqtester/config"
	"github.com/lshigami/iqtester/internal/apiclient"
	"github.com/lshigami/iqtester/internal/apitest"
	"github.com/lshigami/iqtester/internal/model"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newClient(baseURL string, tokens apiclient.TokenSource) *apiclient.Client {
	cfg := &config.Config{}
	cfg.API.BaseURL = baseURL + "/"
	cfg.API.Timeout = 5 * time.Second
	return apiclient.New(cfg, tokens)
}

func loggedIn(t *testing.T, g *WithT, srv *apitest.Server) *apiclient.Client {
	t.Helper()
	pair, err := newClient(srv.BaseURL(), nil).Login(context.Background(), apitest.DefaultUsername, apitest.DefaultPassword)
	g.Expect(err).NotTo(HaveOccurred())
	return newClient(srv.BaseURL(), staticToken(pair.Access))
}

func TestLogin(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	client := newClient(srv.BaseURL(), nil)

	pair, err := client.Login(context.Background(), apitest.DefaultUsername, apitest.DefaultPassword)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pair.Access).NotTo(BeEmpty())
	g.Expect(pair.Refresh).NotTo(BeEmpty())

	_, err = client.Login(context.Background(), apitest.DefaultUsername, "wrong")
	g.Expect(errors.Is(err, apiclient.ErrUnauthorized)).To(BeTrue())

	var apiErr *apiclient.APIError
	g.Expect(errors.As(err, &apiErr)).To(BeTrue())
	g.Expect(apiErr.Message()).To(ContainSubstring("No active account"))
}

func TestRegister(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	client := newClient(srv.BaseURL(), nil)
	ctx := context.Background()

	g.Expect(client.Register(ctx, "dave", "dave@example.com", "longenough")).To(Succeed())

	err := client.Register(ctx, "dave", "not-an-email", "short")
	var verr *apiclient.ValidationError
	g.Expect(errors.As(err, &verr)).To(BeTrue())
	g.Expect(verr.Fields).To(HaveKey("username"))
	g.Expect(verr.Fields).To(HaveKey("email"))
	g.Expect(verr.Fields).To(HaveKey("password"))
	g.Expect(verr.Message()).To(Equal("username: A user with that username already exists."))

	err = client.Register(ctx, "erin", "erin@example.com", "short")
	g.Expect(errors.As(err, &verr)).To(BeTrue())
	g.Expect(verr.Message()).To(HavePrefix("password: "))
}

func TestListTestsAndQuestions(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	client := loggedIn(t, g, srv)
	ctx := context.Background()

	tests, err := client.ListTests(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tests).To(HaveLen(1))
	g.Expect(tests[0].ID).To(Equal(model.ID(srv.FirstTestID())))
	g.Expect(tests[0].Name).To(Equal("Pattern Reasoning"))
	g.Expect(tests[0].TimeLimitMinutes).To(Equal(10))

	questions, err := client.ListQuestions(ctx, tests[0].ID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(questions).To(HaveLen(3))
	ids := srv.QuestionIDs(srv.FirstTestID())
	for i, q := range questions {
		g.Expect(q.ID.String()).To(Equal(ids[i]))
		g.Expect(q.Option1).NotTo(BeEmpty())
	}
}

func TestStringIDs(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t, apitest.WithStringIDs())
	client := loggedIn(t, g, srv)
	ctx := context.Background()

	tests, err := client.ListTests(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tests[0].ID).To(Equal(model.ID(srv.FirstTestID())))

	a, err := client.StartAttempt(ctx, tests[0])
	g.Expect(err).NotTo(HaveOccurred())
	_, err = client.Submit(ctx, a.AttemptID, nil)
	g.Expect(err).NotTo(HaveOccurred())

	history, err := client.History(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(history).To(HaveLen(1))
	g.Expect(history[0].CreatedAt).NotTo(BeZero())
	g.Expect(history[0].Test.Name).To(Equal("Pattern Reasoning"))
}

func TestAttemptLifecycle(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	client := loggedIn(t, g, srv)
	ctx := context.Background()

	tests, err := client.ListTests(ctx)
	g.Expect(err).NotTo(HaveOccurred())

	a, err := client.StartAttempt(ctx, tests[0])
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(a.AttemptID).NotTo(BeEmpty())
	g.Expect(a.TestID).To(Equal(tests[0].ID))
	g.Expect(a.TimeLimitMinutes).To(Equal(10))

	ids := srv.QuestionIDs(srv.FirstTestID())
	answers := []model.Answer{
		{QuestionID: model.ID(ids[0]), Answer: model.Option1},
		{QuestionID: model.ID(ids[1]), Answer: model.Option2},
		{QuestionID: model.ID(ids[2]), Answer: model.Option4},
	}
	result, err := client.Submit(ctx, a.AttemptID, answers)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.IQScore).To(BeNumerically("~", 120, 0.001))

	received, ok := srv.Submission(a.AttemptID)
	g.Expect(ok).To(BeTrue())
	g.Expect(received).To(HaveLen(3))
	g.Expect(received[1].Answer).To(Equal("option2"))

	_, err = client.Submit(ctx, a.AttemptID, answers)
	var apiErr *apiclient.APIError
	g.Expect(errors.As(err, &apiErr)).To(BeTrue())
	g.Expect(apiErr.Status).To(Equal(http.StatusBadRequest))
	g.Expect(apiErr.Message()).To(Equal("attempt already submitted"))

	history, err := client.History(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(history).To(HaveLen(1))
	g.Expect(history[0].Score).To(BeNumerically("~", 120, 0.001))
	g.Expect(history[0].CreatedAt).NotTo(BeZero())
}

func TestRequestsWithoutTokenAreUnauthorized(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	client := newClient(srv.BaseURL(), staticToken(""))

	_, err := client.ListTests(context.Background())
	g.Expect(errors.Is(err, apiclient.ErrUnauthorized)).To(BeTrue())
	g.Expect(srv.Calls(apitest.EndpointTests)).To(Equal(1))
}

func TestExpiredTokenIsUnauthorized(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	expired := apitest.NewAccessToken(1, apitest.DefaultUsername, apitest.DefaultEmail, time.Now().Add(-time.Minute))
	client := newClient(srv.BaseURL(), staticToken(expired))

	_, err := client.History(context.Background())
	g.Expect(errors.Is(err, apiclient.ErrUnauthorized)).To(BeTrue())
}

func TestServerAndNetworkErrors(t *testing.T) {
	g := NewWithT(t)
	srv := apitest.New(t)
	client := loggedIn(t, g, srv)

	srv.FailNext(apitest.EndpointTests, http.StatusInternalServerError)
	_, err := client.ListTests(context.Background())
	var apiErr *apiclient.APIError
	g.Expect(errors.As(err, &apiErr)).To(BeTrue())
	g.Expect(apiErr.Status).To(Equal(http.StatusInternalServerError))
	g.Expect(errors.Is(err, apiclient.ErrUnauthorized)).To(BeFalse())

	offline := newClient("http://127.0.0.1:1/api", nil)
	_, err = offline.Login(context.Background(), "a", "b")
	var netErr *apiclient.NetworkError
	g.Expect(errors.As(err, &netErr)).To(BeTrue())
}

func TestAPIErrorMessage(t *testing.T) {
	g := NewWithT(t)

	g.Expect((&apiclient.APIError{Status: 400, Body: []byte(`{"error":"bad"}`)}).Message()).To(Equal("bad"))
	g.Expect((&apiclient.APIError{Status: 401, Body: []byte(`{"detail":"expired"}`)}).Message()).To(Equal("expired"))
	g.Expect((&apiclient.APIError{Status: 502, Body: []byte(`<html>`)}).Message()).To(Equal("<html>"))
	g.Expect((&apiclient.APIError{Status: 503}).Message()).To(Equal("Service Unavailable"))
}

func TestValidationErrorPriority(t *testing.T) {
	g := NewWithT(t)

	verr := &apiclient.ValidationError{Fields: map[string][]string{
		"non_field_errors": {"Passwords do not match."},
		"zeta":             {"z"},
	}}
	g.Expect(verr.Message()).To(Equal("Passwords do not match."))

	verr = &apiclient.ValidationError{Fields: map[string][]string{"zeta": {"z"}, "alpha": {"a"}}}
	g.Expect(verr.Message()).To(Equal("alpha: a"))

	g.Expect((&apiclient.ValidationError{}).Message()).To(ContainSubstring("registration rejected"))
}
