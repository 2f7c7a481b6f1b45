// Package ui holds the terminal screens of the IQ tester.
package ui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lshigami/iqtester/internal/apiclient"
	"github.com/lshigami/iqtester/internal/guard"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/lshigami/iqtester/internal/service"
	"github.com/rs/zerolog/log"
)

// Screen is one page of the application.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)
	View() string
}

// closer is implemented by screens that own background work.
type closer interface {
	Close()
}

// Session is what the app reads from the session store.
type Session interface {
	guard.SessionSource
	Loaded() <-chan struct{}
}

// NavigateMsg asks the app to show route. The route guard decides where the
// request actually lands.
type NavigateMsg struct {
	Route   guard.Route
	Attempt *model.Attempt
	Result  *model.SubmissionResult
	Notice  string
}

func navigate(msg NavigateMsg) tea.Cmd {
	return func() tea.Msg { return msg }
}

type restoredMsg struct{}

// authExpiredMsg is sent by a screen whose request was refused with 401.
type authExpiredMsg struct{}

type loggedOutMsg struct{ err error }

// App is the root bubbletea model: the navigation bar plus the current screen.
type App struct {
	session Session
	guard   *guard.Guard
	auth    service.AuthService
	tests   service.TestService
	history service.HistoryService
	scores  service.ScoreConverterService

	route   guard.Route
	screen  Screen
	pending *NavigateMsg
}

func NewApp(
	session Session,
	auth service.AuthService,
	tests service.TestService,
	history service.HistoryService,
	scores service.ScoreConverterService,
) *App {
	return &App{
		session: session,
		guard:   guard.New(session),
		auth:    auth,
		tests:   tests,
		history: history,
		scores:  scores,
		pending: &NavigateMsg{Route: guard.RouteHome},
	}
}

func (a *App) Init() tea.Cmd {
	loaded := a.session.Loaded()
	return func() tea.Msg {
		<-loaded
		return restoredMsg{}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m, cmd, handled := a.handleGlobalKey(msg); handled {
			return m, cmd
		}
	case restoredMsg:
		if a.pending == nil {
			return a, nil
		}
		next := *a.pending
		a.pending = nil
		return a.navigate(next)
	case NavigateMsg:
		return a.navigate(msg)
	case authExpiredMsg:
		log.Info().Msg("Server refused the session, signing out")
		return a, a.logout("Your session has expired. Please sign in again.")
	case loggedOutMsg:
		notice := ""
		if msg.err != nil {
			notice = "Signed out, but stored credentials could not be removed."
		}
		return a.navigate(NavigateMsg{Route: guard.RouteLogin, Notice: notice})
	}

	if a.screen == nil {
		return a, nil
	}
	var cmd tea.Cmd
	a.screen, cmd = a.screen.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.navBar())
	b.WriteString("\n\n")
	if a.screen == nil {
		b.WriteString(mutedStyle.Render("Restoring session..."))
	} else {
		b.WriteString(a.screen.View())
	}
	b.WriteString("\n")
	return b.String()
}

// Route is the route currently shown.
func (a *App) Route() guard.Route {
	return a.route
}

func (a *App) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		a.closeScreen()
		return a, tea.Quit, true
	}
	if a.guard.State() != guard.Authorized {
		return a, nil, false
	}
	switch msg.String() {
	case "ctrl+t":
		m, cmd := a.navigate(NavigateMsg{Route: guard.RouteHome})
		return m, cmd, true
	case "ctrl+h":
		m, cmd := a.navigate(NavigateMsg{Route: guard.RouteHistory})
		return m, cmd, true
	case "ctrl+o":
		return a, a.logout(""), true
	}
	return a, nil, false
}

func (a *App) logout(notice string) tea.Cmd {
	a.closeScreen()
	return func() tea.Msg {
		err := a.auth.Logout(context.Background())
		if notice != "" && err == nil {
			return NavigateMsg{Route: guard.RouteLogin, Notice: notice}
		}
		return loggedOutMsg{err: err}
	}
}

func (a *App) navigate(msg NavigateMsg) (tea.Model, tea.Cmd) {
	decision := a.guard.Resolve(msg.Route)
	if decision.Wait {
		a.pending = &msg
		return a, nil
	}
	if decision.Redirected(msg.Route) {
		msg = NavigateMsg{Route: decision.Route, Notice: msg.Notice}
	}

	a.closeScreen()
	a.route = msg.Route
	a.screen = a.build(msg)
	log.Debug().Str("route", string(msg.Route)).Msg("Navigated")
	return a, a.screen.Init()
}

func (a *App) build(msg NavigateMsg) Screen {
	switch msg.Route {
	case guard.RouteLogin:
		return newLoginScreen(a.auth, msg.Notice)
	case guard.RouteRegister:
		return newRegisterScreen(a.auth)
	case guard.RouteTest:
		return newTestScreen(a.tests, msg.Attempt)
	case guard.RouteResults:
		return newResultsScreen(a.scores, msg.Result)
	case guard.RouteHistory:
		return newHistoryScreen(a.history)
	}
	return newHomeScreen(a.tests, msg.Notice)
}

func (a *App) closeScreen() {
	if c, ok := a.screen.(closer); ok {
		c.Close()
	}
}

func (a *App) navBar() string {
	title := titleStyle.Render("IQ Tester")
	identity, ok := a.session.CurrentIdentity()
	if !ok || a.guard.State() != guard.Authorized {
		return title
	}
	links := mutedStyle.Render("ctrl+t tests · ctrl+h history · ctrl+o logout")
	return title + "  " + links + "  " + accentStyle.Render(identity.Username)
}

// errorText turns a request error into the message shown to the user.
func errorText(err error) string {
	var verr *apiclient.ValidationError
	var netErr *apiclient.NetworkError
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &verr):
		return verr.Message()
	case errors.As(err, &netErr):
		return "Cannot reach the server. Check your connection and try again."
	case errors.As(err, &apiErr):
		return apiErr.Message()
	}
	return err.Error()
}

// expired reports whether the server refused the session.
func expired(err error) bool {
	return errors.Is(err, apiclient.ErrUnauthorized)
}
