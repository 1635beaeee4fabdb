package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

type authResponse struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	u, ok := s.users[normalizeEmail(creds.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.respondWithToken(w, http.StatusOK, u.profile)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := domain.ValidateContact(req.Name, req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	p, err := s.AddUser(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password, domain.RoleAttendee)
	if errors.Is(err, errEmailTaken) {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	s.respondWithToken(w, http.StatusCreated, p)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, p domain.Profile) {
	token, err := s.issuer.Issue(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: p})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	s.mu.Lock()
	u := s.users[normalizeEmail(c.Email)]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]domain.Profile{"user": u.profile})
}

func (s *Server) publicEvents(w http.ResponseWriter, r *http.Request) {
	viewer := claimsFrom(r)
	s.mu.Lock()
	out := make([]domain.Event, 0, len(s.events))
	for _, ev := range s.sortedEventsLocked() {
		out = append(out, s.viewLocked(ev, viewer, false))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]domain.Event, 0, len(s.events))
	for _, ev := range s.sortedEventsLocked() {
		out = append(out, s.viewLocked(ev, nil, true))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	s.mu.Lock()
	ev, ok := s.events[id]
	var out domain.Event
	if ok {
		out = s.viewLocked(ev, claimsFrom(r), false)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeEventInput(r *http.Request) (domain.EventInput, string) {
	var in domain.EventInput
	if err := decodeJSON(r, &in); err != nil {
		return in, "Invalid request body"
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return in, err.Error()
	}
	return in, ""
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	in, problem := decodeEventInput(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	writeJSON(w, http.StatusCreated, s.AddEvent(in))
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	in, problem := decodeEventInput(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if booked := len(s.attendeesOfLocked(id)); in.Capacity < booked {
		writeError(w, http.StatusBadRequest, "Capacity cannot be lower than the number of attendees")
		return
	}
	ev.Title = in.Title
	ev.Description = in.Description
	ev.Date = in.Date
	ev.Location = in.Location
	ev.Capacity = in.Capacity
	writeJSON(w, http.StatusOK, s.viewLocked(ev, nil, false))
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	delete(s.events, id)
	kept := s.attendees[:0:0]
	for _, a := range s.attendees {
		if a.EventID != id {
			kept = append(kept, a)
		}
	}
	s.attendees = kept
	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

func (s *Server) listAttendees(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]domain.Attendee{}, s.attendees...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) eventAttendees(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "eventId"))
	s.mu.Lock()
	_, ok := s.events[id]
	out := s.attendeesOfLocked(id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// admitLocked checks that email may take a seat at eventID.
func (s *Server) admitLocked(eventID domain.ID, email string, userID *domain.ID, skip domain.ID) (int, string) {
	ev, ok := s.events[eventID]
	if !ok {
		return http.StatusNotFound, "Event not found"
	}
	attendees := s.attendeesOfLocked(eventID)
	for _, a := range attendees {
		if a.ID == skip {
			continue
		}
		sameUser := userID != nil && a.UserID != nil && *a.UserID == *userID
		if sameUser || normalizeEmail(a.Email) == normalizeEmail(email) {
			return http.StatusBadRequest, "You have already booked this event"
		}
	}
	if skip == "" && len(attendees) >= ev.Capacity {
		return http.StatusBadRequest, "Event is full"
	}
	return 0, ""
}

func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := domain.ValidateContact(req.Name, req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := claimsFrom(r)
	if req.UserID != nil && (viewer == nil || req.UserID.String() != viewer.Subject) {
		writeError(w, http.StatusForbidden, "Cannot book on behalf of another user")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, msg := s.admitLocked(req.EventID, req.Email, req.UserID, ""); status != 0 {
		writeError(w, status, msg)
		return
	}
	a := s.addAttendeeLocked(req.EventID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.UserID)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) createAttendee(w http.ResponseWriter, r *http.Request) {
	var in domain.AttendeeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := domain.ValidateContact(in.Name, in.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, msg := s.admitLocked(in.EventID, in.Email, nil, ""); status != 0 {
		writeError(w, status, msg)
		return
	}
	a := s.addAttendeeLocked(in.EventID, strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), nil)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) updateAttendee(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	var in domain.AttendeeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := domain.ValidateContact(in.Name, in.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.attendeeIndexLocked(id)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Attendee not found")
		return
	}
	current := s.attendees[idx]
	if in.EventID == "" {
		in.EventID = current.EventID
	}
	skip := id
	if in.EventID != current.EventID {
		skip = ""
	}
	if status, msg := s.admitLocked(in.EventID, in.Email, current.UserID, skip); status != 0 {
		writeError(w, status, msg)
		return
	}
	current.EventID = in.EventID
	current.Name = strings.TrimSpace(in.Name)
	current.Email = strings.TrimSpace(in.Email)
	s.attendees[idx] = current
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) deleteAttendee(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.attendeeIndexLocked(id)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Attendee not found")
		return
	}
	s.removeAttendeeLocked(idx)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Attendee deleted successfully"})
}

func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	eventID := domain.ID(chi.URLParam(r, "eventId"))
	viewer := claimsFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.attendees {
		if a.EventID == eventID && bookedBy(a, viewer) {
			s.removeAttendeeLocked(i)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Booking cancelled successfully"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Booking not found")
}

func (s *Server) attendeeIndexLocked(id domain.ID) int {
	for i, a := range s.attendees {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) removeAttendeeLocked(i int) {
	s.attendees = append(s.attendees[:i:i], s.attendees[i+1:]...)
}

// Seed loads a small demo data set: an admin, an attendee and three
// events, one of them fully booked.
func (s *Server) Seed() error {
	if _, err := s.AddUser("Ada Admin", "admin@eventify.dev", "admin123", domain.RoleAdmin); err != nil {
		return err
	}
	ann, err := s.AddUser("Ann Attendee", "ann@eventify.dev", "attendee123", domain.RoleAttendee)
	if err != nil {
		return err
	}

	base := s.now().UTC().Truncate(24 * time.Hour).Add(7*24*time.Hour + 18*time.Hour)
	meetup := s.AddEvent(domain.EventInput{
		Title:       "Go Meetup",
		Description: "Lightning talks and pizza",
		Date:        base,
		Location:    "Community Hall",
		Capacity:    30,
	})
	workshop := s.AddEvent(domain.EventInput{
		Title:       "Terminal UI Workshop",
		Description: "Build a bubbletea app in two hours",
		Date:        base.Add(3 * 24 * time.Hour),
		Location:    "Room 4B",
		Capacity:    2,
	})
	s.AddEvent(domain.EventInput{
		Title:       "Community Picnic",
		Description: "Bring a blanket",
		Date:        base.Add(10 * 24 * time.Hour),
		Location:    "Riverside Park",
		Capacity:    100,
	})

	annID := ann.ID
	s.AddAttendee(meetup.ID, ann.Name, ann.Email, &annID)
	s.AddAttendee(workshop.ID, "Grace Guest", "grace@example.com", nil)
	s.AddAttendee(workshop.ID, "Linus Guest", "linus@example.com", nil)
	return nil
}
