// Package tui is the interactive Eventify browser.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/eventify/internal/app"
	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/authz"
	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// ViewType represents the current screen
type ViewType int

// View type constants
const (
	// ViewEvents is the public event list
	ViewEvents ViewType = iota
	// ViewDetail shows one event
	ViewDetail
	// ViewMine lists the viewer's bookings
	ViewMine
	// ViewAdmin is the admin event list
	ViewAdmin
	// ViewAttendees lists the attendees of one event
	ViewAttendees
)

func (v ViewType) String() string {
	switch v {
	case ViewEvents:
		return "Events"
	case ViewDetail:
		return "Event"
	case ViewMine:
		return "My bookings"
	case ViewAdmin:
		return "Admin"
	case ViewAttendees:
		return "Attendees"
	default:
		return "Unknown"
	}
}

// requirement returns the gate requirement of protected screens.
func (v ViewType) requirement() (authz.Requirement, bool) {
	switch v {
	case ViewMine:
		return authz.RequireAttendee, true
	case ViewAdmin, ViewAttendees:
		return authz.RequireAdmin, true
	default:
		return authz.RequireNone, false
	}
}

type toast struct {
	id    int
	level mutation.Level
	text  string
}

const screenSlot = "screen"

// Model represents the TUI application state
type Model struct {
	ctx    context.Context
	svc    *app.Service
	bridge *Bridge
	watch  *watcher

	state auth.State

	view     ViewType
	back     ViewType
	selected domain.ID

	events      []domain.Event
	admin       []domain.Event
	attendees   []domain.Attendee
	attendeesOf domain.Event
	loading     bool
	loadErr     error

	list    list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	form     *huh.Form
	formKind formKind
	values   *formValues

	// ctl serializes the mutations of the current screen and is closed
	// when the screen is left.
	ctl *mutation.Control

	toasts    []toast
	nextToast int
	toastTTL  time.Duration

	width    int
	height   int
	ready    bool
	started  bool
	quitting bool

	styles Styles
}

// NewModel creates the browser model. bridge may be nil when nothing
// outside the model needs to reach it.
func NewModel(ctx context.Context, svc *app.Service, bridge *Bridge) Model {
	if bridge == nil {
		bridge = NewBridge()
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Eventify"
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)
	l.KeyMap.CloseFullHelp.SetEnabled(false)

	return Model{
		ctx:      ctx,
		svc:      svc,
		bridge:   bridge,
		watch:    newWatcher(svc.Cache(), bridge),
		state:    svc.State(),
		view:     ViewEvents,
		list:     l,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     defaultKeys(),
		ctl:      svc.Coordinator().Control(),
		toastTTL: defaultToastTTL,
		styles:   DefaultStyles(),
	}
}

// Init resolves the session; the first screen loads once it settles.
func (m Model) Init() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return SessionMsg{State: svc.Resolve(ctx)}
	})
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.list.SetSize(msg.Width, max(msg.Height-8, 5))
		m.help.Width = msg.Width
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SessionMsg:
		return m.handleSession(msg.State)

	case EntryMsg:
		return m.applyEntry(msg.Entry)

	case loadedMsg:
		if msg.err != nil {
			if msg.key.Equal(m.currentKey()) {
				m.loading = false
				m.loadErr = msg.err
			}
			return m, nil
		}
		return m.applyData(msg.key, msg.data)

	case NotifyMsg:
		n := msg.Notification
		cmd := m.addToast(n.Level, n.Message)
		return m, cmd

	case mutatedMsg:
		return m.handleMutated(msg)

	case authMsg:
		return m.handleAuth(msg)

	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
				break
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.form != nil {
			if msg.String() == "esc" {
				m.closeForm()
				return m, nil
			}
			return m.updateForm(msg)
		}
		return m.handleKeyPress(msg)
	}

	if m.form != nil {
		return m.updateForm(msg)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		return m.forwardToList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.teardown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if m.list.FilterState() == list.FilterApplied {
			return m.forwardToList(msg)
		}
		switch m.view {
		case ViewDetail, ViewAttendees:
			return m.enter(m.back)
		case ViewMine, ViewAdmin:
			return m.enter(ViewEvents)
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if ev, ok := m.current(); ok && m.view != ViewAttendees && m.view != ViewDetail {
			m.back = m.view
			m.selected = ev.ID
			return m.enter(ViewDetail)
		}
		return m, nil

	case key.Matches(msg, m.keys.Book):
		if ev, ok := m.current(); ok {
			return m.startBooking(ev)
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if ev, ok := m.current(); ok {
			return m.startCancel(ev)
		}
		return m, nil

	case key.Matches(msg, m.keys.Mine):
		return m.enter(ViewMine)

	case key.Matches(msg, m.keys.Admin):
		return m.enter(ViewAdmin)

	case key.Matches(msg, m.keys.New):
		if !m.requireAdmin() {
			cmd := m.addToast(mutation.LevelError, "Only admins can create events")
			return m, cmd
		}
		m.values = &formValues{date: time.Now().Add(7 * 24 * time.Hour).Truncate(time.Hour).Format(DateInputLayout)}
		return m.openForm(formEventEditor, newEventEditor(m.values, false))

	case key.Matches(msg, m.keys.Edit):
		ev, ok := m.current()
		if !ok {
			return m, nil
		}
		if !m.requireAdmin() {
			cmd := m.addToast(mutation.LevelError, "Only admins can edit events")
			return m, cmd
		}
		m.values = &formValues{}
		fillEditor(m.values, ev)
		return m.openForm(formEventEditor, newEventEditor(m.values, true))

	case key.Matches(msg, m.keys.Delete):
		return m.startDelete()

	case key.Matches(msg, m.keys.Attendees):
		ev, ok := m.current()
		if !ok || m.view == ViewAttendees {
			return m, nil
		}
		m.attendeesOf = ev
		m.back = m.view
		return m.enter(ViewAttendees)

	case key.Matches(msg, m.keys.Login):
		if m.state.IsAuthenticated() {
			return m.logout()
		}
		return m.openLogin(m.view)

	case key.Matches(msg, m.keys.Signup):
		if m.state.IsAuthenticated() {
			return m, nil
		}
		m.values = &formValues{after: m.view}
		return m.openForm(formSignup, newSignupForm(m.values))

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.load(true)
	}

	return m.forwardToList(msg)
}

func (m Model) forwardToList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// enter switches to screen v, re-evaluating its gate against the session.
func (m Model) enter(v ViewType) (tea.Model, tea.Cmd) {
	if v != m.view {
		m.ctl.Close()
		m.ctl = m.svc.Coordinator().Control()
		m.list.ResetFilter()
		m.list.Select(0)
	}
	m.view = v
	m.loadErr = nil
	m.loading = false

	if req, protected := v.requirement(); protected {
		switch authz.DecideState(m.state, req) {
		case authz.RedirectLogin:
			if m.formKind == formLogin {
				return m, nil
			}
			return m.openLogin(v)
		case authz.RenderLoading, authz.RenderDenied:
			cmd := m.refreshList()
			return m, cmd
		}
	}

	k := m.currentKey()
	m.watch.Watch(screenSlot, k)
	if e, ok := m.svc.Cache().Peek(k); ok && e.HasData {
		m.setData(k, e.Data)
	} else {
		m.loading = true
	}
	cmd := tea.Batch(m.refreshList(), m.load(false))
	return m, cmd
}

// currentKey is the cache key backing the current screen.
func (m Model) currentKey() query.Key {
	switch m.view {
	case ViewAdmin:
		return query.EventsKey()
	case ViewAttendees:
		return query.AttendeesKey(m.attendeesOf.ID)
	case ViewDetail:
		if m.back == ViewAdmin {
			return query.EventsKey()
		}
	}
	return query.PublicEventsKey(m.state.User)
}

// load fetches the data of the current screen through the cache.
func (m Model) load(force bool) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	opts := query.FetchOptions{Force: force}
	key := m.currentKey()

	switch key.Root() {
	case query.RootEvents:
		return func() tea.Msg {
			events, err := svc.AdminEvents(ctx, opts)
			return loadedMsg{key: key, data: events, err: err}
		}
	case query.RootAttendees:
		id := m.attendeesOf.ID
		return func() tea.Msg {
			attendees, err := svc.Attendees(ctx, id, opts)
			return loadedMsg{key: key, data: attendees, err: err}
		}
	default:
		return func() tea.Msg {
			events, err := svc.PublicEvents(ctx, opts)
			return loadedMsg{key: key, data: events, err: err}
		}
	}
}

func (m Model) applyEntry(e query.Entry) (tea.Model, tea.Cmd) {
	if !e.Key.Equal(m.currentKey()) {
		return m, nil
	}
	m.loading = e.Status == query.Fetching && !e.HasData
	m.loadErr = e.Err
	if !e.HasData {
		return m, nil
	}
	m.setData(e.Key, e.Data)
	cmd := m.refreshList()
	return m, cmd
}

func (m Model) applyData(key query.Key, data any) (tea.Model, tea.Cmd) {
	if !key.Equal(m.currentKey()) {
		return m, nil
	}
	m.loading = false
	m.loadErr = nil
	m.setData(key, data)
	cmd := m.refreshList()
	return m, cmd
}

func (m *Model) setData(key query.Key, data any) {
	switch d := data.(type) {
	case []domain.Event:
		if key.Root() == query.RootEvents {
			m.admin = d
		} else {
			m.events = d
		}
	case []domain.Attendee:
		m.attendees = d
	}
}

func viewerID(st auth.State) domain.ID {
	if st.User == nil {
		return ""
	}
	return st.User.ID
}

// handleSession re-evaluates the current screen when the viewer changes.
func (m Model) handleSession(st auth.State) (tea.Model, tea.Cmd) {
	prev := m.state
	m.state = st
	if !st.Status.Settled() {
		return m, nil
	}
	if m.started && prev.Status == st.Status && viewerID(prev) == viewerID(st) {
		return m, nil
	}
	m.started = true
	return m.enter(m.view)
}

func (m Model) handleAuth(msg authMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		text := apperrors.UserMessage(msg.err)
		if text == "" || apperrors.IsNetwork(msg.err) {
			text = "Failed to login"
		}
		cmd := m.addToast(mutation.LevelError, text)
		return m, cmd
	}

	after := ViewEvents
	if m.values != nil {
		after = m.values.after
	}
	name := ""
	if msg.state.User != nil {
		name = msg.state.User.Name
	}
	toastCmd := m.addToast(mutation.LevelSuccess, "Welcome, "+name)

	m.state = msg.state
	m.started = true
	next, cmd := m.enter(after)
	return next, tea.Batch(toastCmd, cmd)
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	if err := m.svc.Logout(); err != nil {
		cmd := m.addToast(mutation.LevelError, "Failed to logout: "+apperrors.UserMessage(err))
		return m, cmd
	}
	toastCmd := m.addToast(mutation.LevelInfo, "Logged out")
	next, cmd := m.handleSession(m.svc.State())
	return next, tea.Batch(toastCmd, cmd)
}

func (m Model) handleMutated(msg mutatedMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if msg.err != nil && !msg.notified {
		text := apperrors.UserMessage(msg.err)
		if errors.Is(msg.err, mutation.ErrPending) {
			text = "Still working on the previous request"
		}
		cmds = append(cmds, m.addToast(mutation.LevelError, text))
	}
	// A rejected credential logs the viewer out underneath us.
	if st := m.svc.State(); st.Status != m.state.Status || viewerID(st) != viewerID(m.state) {
		next, cmd := m.handleSession(st)
		return next, tea.Batch(append(cmds, cmd)...)
	}
	if msg.err == nil && msg.name == "delete_event" && m.view == ViewDetail {
		next, cmd := m.enter(m.back)
		return next, tea.Batch(append(cmds, cmd)...)
	}
	cmds = append(cmds, m.load(false))
	return m, tea.Batch(cmds...)
}

// current returns the event the viewer is looking at.
func (m Model) current() (domain.Event, bool) {
	switch m.view {
	case ViewDetail:
		return m.findEvent(m.selected)
	case ViewAttendees:
		return m.attendeesOf, m.attendeesOf.ID != ""
	}
	if item, ok := m.list.SelectedItem().(eventItem); ok {
		return item.ev, true
	}
	return domain.Event{}, false
}

func (m Model) findEvent(id domain.ID) (domain.Event, bool) {
	source := m.events
	if m.back == ViewAdmin {
		source = m.admin
	}
	for _, ev := range source {
		if ev.ID == id {
			return ev, true
		}
	}
	return domain.Event{}, false
}

func (m Model) requireAdmin() bool {
	return authz.DecideState(m.state, authz.RequireAdmin) == authz.RenderContent
}

func (m Model) startBooking(ev domain.Event) (tea.Model, tea.Cmd) {
	switch app.EligibilityFor(m.state, ev) {
	case app.Disabled:
		cmd := m.addToast(mutation.LevelInfo, "This event is fully booked")
		return m, cmd
	case app.AlreadyBooked:
		cmd := m.addToast(mutation.LevelInfo, "You have already booked this event. Press c to cancel")
		return m, cmd
	case app.AdminControls:
		cmd := m.addToast(mutation.LevelInfo, "Admins manage events and cannot book them")
		return m, cmd
	}

	m.values = &formValues{event: ev}
	if m.state.IsAuthenticated() {
		desc := fmt.Sprintf("%s on %s as %s <%s>", ev.Title,
			ev.Date.Local().Format(displayLayout), m.state.User.Name, m.state.User.Email)
		return m.openForm(formConfirmBooking, newConfirmForm(m.values, "Confirm booking", desc, "Book"))
	}
	return m.openForm(formGuestBooking, newGuestBookingForm(m.values))
}

func (m Model) startCancel(ev domain.Event) (tea.Model, tea.Cmd) {
	if app.EligibilityFor(m.state, ev) != app.AlreadyBooked {
		cmd := m.addToast(mutation.LevelInfo, "You have not booked this event")
		return m, cmd
	}
	m.values = &formValues{event: ev}
	return m.openForm(formConfirmCancel,
		newConfirmForm(m.values, "Cancel booking", "Give up your seat at "+ev.Title+"?", "Cancel booking"))
}

func (m Model) startDelete() (tea.Model, tea.Cmd) {
	if !m.requireAdmin() {
		cmd := m.addToast(mutation.LevelError, "Only admins can delete")
		return m, cmd
	}
	if m.view == ViewAttendees {
		item, ok := m.list.SelectedItem().(attendeeItem)
		if !ok {
			return m, nil
		}
		m.values = &formValues{attendee: item.a}
		return m.openForm(formConfirmRemoveAttendee,
			newConfirmForm(m.values, "Remove attendee", "Remove "+item.a.Name+" from "+m.attendeesOf.Title+"?", "Remove"))
	}
	ev, ok := m.current()
	if !ok {
		return m, nil
	}
	m.values = &formValues{event: ev}
	return m.openForm(formConfirmDelete,
		newConfirmForm(m.values, "Delete event", "Delete "+ev.Title+" and all its bookings?", "Delete"))
}

func (m Model) openLogin(after ViewType) (tea.Model, tea.Cmd) {
	m.values = &formValues{after: after}
	return m.openForm(formLogin, newLoginForm(m.values))
}

func (m Model) openForm(kind formKind, form *huh.Form) (tea.Model, tea.Cmd) {
	if m.width > 0 {
		form = form.WithWidth(min(m.width-6, 72))
	}
	m.form = form
	m.formKind = kind
	return m, form.Init()
}

func (m *Model) closeForm() {
	m.form = nil
	m.formKind = formNone
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	f, cmd := m.form.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		m.form = form
	}
	switch m.form.State {
	case huh.StateCompleted:
		kind := m.formKind
		m.closeForm()
		return m, tea.Batch(cmd, m.submit(kind, m.values))
	case huh.StateAborted:
		m.closeForm()
	}
	return m, cmd
}

// submit turns a completed form into the command that carries it out.
func (m Model) submit(kind formKind, v *formValues) tea.Cmd {
	ctx, svc := m.ctx, m.svc

	switch kind {
	case formLogin:
		creds := domain.Credentials{Email: v.email, Password: v.password}
		return func() tea.Msg {
			st, err := svc.Login(ctx, creds)
			return authMsg{state: st, err: err}
		}
	case formSignup:
		req := domain.SignupRequest{Name: v.name, Email: v.email, Password: v.password}
		return func() tea.Msg {
			st, err := svc.Signup(ctx, req)
			return authMsg{state: st, err: err}
		}
	case formGuestBooking:
		ev, contact := v.event, app.Contact{Name: v.name, Email: v.email}
		return m.mutate("book_event", func(ctx context.Context, ctl *mutation.Control) error {
			_, err := svc.Book(ctx, ctl, ev, contact)
			return err
		})
	case formConfirmBooking:
		if !v.confirm {
			return nil
		}
		ev := v.event
		return m.mutate("book_event", func(ctx context.Context, ctl *mutation.Control) error {
			_, err := svc.Book(ctx, ctl, ev, app.Contact{})
			return err
		})
	case formConfirmCancel:
		if !v.confirm {
			return nil
		}
		id := v.event.ID
		return m.mutate("cancel_booking", func(ctx context.Context, ctl *mutation.Control) error {
			return svc.CancelBooking(ctx, ctl, id)
		})
	case formConfirmDelete:
		if !v.confirm {
			return nil
		}
		id, target := v.event.ID, app.PublicList
		if m.view == ViewAdmin || m.back == ViewAdmin {
			target = app.AdminList
		}
		return m.mutate("delete_event", func(ctx context.Context, ctl *mutation.Control) error {
			return svc.DeleteEvent(ctx, ctl, id, target)
		})
	case formConfirmRemoveAttendee:
		if !v.confirm {
			return nil
		}
		a := v.attendee
		return m.mutate("delete_attendee", func(ctx context.Context, ctl *mutation.Control) error {
			return svc.DeleteAttendee(ctx, ctl, a)
		})
	case formEventEditor:
		in, err := v.eventInput()
		if err != nil {
			return func() tea.Msg { return mutatedMsg{name: "save_event", err: apperrors.NewValidationError("", err.Error())} }
		}
		if id := v.event.ID; id != "" {
			return m.mutate("update_event", func(ctx context.Context, ctl *mutation.Control) error {
				_, err := svc.UpdateEvent(ctx, ctl, id, in)
				return err
			})
		}
		return m.mutate("create_event", func(ctx context.Context, ctl *mutation.Control) error {
			_, err := svc.CreateEvent(ctx, ctl, in)
			return err
		})
	}
	return nil
}

// mutate runs fn on the current screen's control.
func (m Model) mutate(name string, fn func(context.Context, *mutation.Control) error) tea.Cmd {
	ctx, ctl, bridge := m.ctx, m.ctl, m.bridge
	return func() tea.Msg {
		before := bridge.Notified()
		err := fn(ctx, ctl)
		return mutatedMsg{name: name, err: err, notified: bridge.Notified() > before}
	}
}

func (m *Model) addToast(level mutation.Level, text string) tea.Cmd {
	if text == "" {
		return nil
	}
	m.nextToast++
	id := m.nextToast
	m.toasts = append(m.toasts, toast{id: id, level: level, text: text})
	if len(m.toasts) > 3 {
		m.toasts = m.toasts[len(m.toasts)-3:]
	}
	if m.toastTTL <= 0 {
		return nil
	}
	return tea.Tick(m.toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

// teardown detaches the model from the core layers.
func (m Model) teardown() {
	m.ctl.Close()
	m.watch.Close()
}
