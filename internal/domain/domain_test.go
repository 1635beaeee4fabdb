package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		value   string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"attendee", RoleAttendee, false},
		{"Admin", "", true},
		{"", "", true},
		{"superuser", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseRole(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfile_IsAdmin(t *testing.T) {
	var nilProfile *Profile
	assert.False(t, nilProfile.IsAdmin())
	assert.True(t, (&Profile{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Profile{Role: RoleAttendee}).IsAdmin())
}

func TestProfile_Validate(t *testing.T) {
	assert.NoError(t, Profile{ID: "1", Role: RoleAttendee}.Validate())
	assert.Error(t, Profile{Role: RoleAdmin}.Validate())
	assert.Error(t, Profile{ID: "1", Role: "guest"}.Validate())
}

func TestID_UnmarshalJSON(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 5, "b": "evt-7", "c": null}`), &payload))

	assert.Equal(t, ID("5"), payload.A)
	assert.Equal(t, ID("evt-7"), payload.B)
	assert.Equal(t, ID(""), payload.C)

	out, err := json.Marshal(payload.A)
	require.NoError(t, err)
	assert.Equal(t, `"5"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &payload))
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, ID("42"), id)

	_, err = ParseID("")
	assert.Error(t, err)
	_, err = ParseID("1/../2")
	assert.Error(t, err)
}

func TestEvent_Normalize(t *testing.T) {
	t.Run("public listing", func(t *testing.T) {
		e := Event{Capacity: 10, AttendeeCount: 4}
		e.Normalize()
		assert.Equal(t, 6, e.AvailableSlots)
		assert.False(t, e.IsFull)
	})

	t.Run("admin listing counts attendees array", func(t *testing.T) {
		e := Event{Capacity: 2, Attendees: []Attendee{{ID: "1"}, {ID: "2"}}}
		e.Normalize()
		assert.Equal(t, 2, e.AttendeeCount)
		assert.Equal(t, 0, e.AvailableSlots)
		assert.True(t, e.IsFull)
	})

	t.Run("overbooked is clamped", func(t *testing.T) {
		e := Event{Capacity: 3, AttendeeCount: 5}
		e.Normalize()
		assert.Equal(t, 3, e.AttendeeCount)
		assert.True(t, e.IsFull)
	})
}

func TestEvent_ReleaseSlot(t *testing.T) {
	e := Event{ID: "1", Capacity: 2, AttendeeCount: 2, UserHasBooked: true}
	e.Normalize()
	require.True(t, e.IsFull)

	released := e.ReleaseSlot()
	assert.False(t, released.UserHasBooked)
	assert.Equal(t, 1, released.AvailableSlots)
	assert.False(t, released.IsFull)

	assert.True(t, e.UserHasBooked, "original must not change")
	assert.Equal(t, 2, e.AttendeeCount)
}

func TestEvent_ReleaseLastSlotWithAttendeeList(t *testing.T) {
	e := Event{ID: "1", Capacity: 1, AttendeeCount: 1, UserHasBooked: true,
		Attendees: []Attendee{{ID: "a1", Name: "Ann Attendee"}}}
	e.Normalize()
	require.True(t, e.IsFull)

	released := e.ReleaseSlot()
	assert.Equal(t, 0, released.AttendeeCount)
	assert.Equal(t, 1, released.AvailableSlots)
	assert.False(t, released.IsFull)
	assert.Len(t, e.Attendees, 1, "original must not change")
}

func TestEventInput_Validate(t *testing.T) {
	valid := EventInput{Title: "Go Meetup", Date: mustDate(t), Capacity: 10}
	assert.NoError(t, valid.Validate())

	missingTitle := valid
	missingTitle.Title = "  "
	assert.Error(t, missingTitle.Validate())

	zeroCap := valid
	zeroCap.Capacity = 0
	assert.Error(t, zeroCap.Validate())
}

func TestBookingRequest_JSON(t *testing.T) {
	guest, err := json.Marshal(BookingRequest{EventID: "1", Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, string(guest), "userId")
	assert.True(t, BookingRequest{}.IsGuest())

	uid := ID("9")
	member, err := json.Marshal(BookingRequest{EventID: "1", Name: "Bo", Email: "bo@example.com", UserID: &uid})
	require.NoError(t, err)
	assert.Contains(t, string(member), `"userId":"9"`)
}

func TestValidateContact(t *testing.T) {
	assert.NoError(t, ValidateContact("Ann", "ann@example.com"))
	assert.Error(t, ValidateContact("", "ann@example.com"))
	assert.Error(t, ValidateContact("Ann", ""))
	assert.Error(t, ValidateContact("Ann", "not-an-email"))
}
