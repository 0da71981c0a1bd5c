package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/models"
)

func starts(slots []Slot) []int {
	out := make([]int, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start)
	}

	return out
}

func labels(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}

	return out
}

func TestComputeSlotsCountForSameDayWindow(t *testing.T) {
	for from := 0; from < 23; from++ {
		for to := from + 1; to < 24; to++ {
			for req := 1; req <= to-from; req++ {
				slots, err := ComputeSlots(Window{From: from, To: to}, nil, req)
				require.NoError(t, err)
				require.Len(t, slots, to-from-req+1, "from=%d to=%d req=%d", from, to, req)
			}
		}
	}
}

func TestComputeSlotsNineToFive(t *testing.T) {
	w, err := ParseWorkingHours("09:00", "17:00")
	require.NoError(t, err)

	slots, err := ComputeSlots(w, nil, 1)
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, "9:00 - 10:00", slots[0].String())
	assert.Equal(t, "16:00 - 17:00", slots[7].String())
}

func TestComputeSlotsSkipsBookedHour(t *testing.T) {
	w, err := ParseWorkingHours("09:00", "17:00")
	require.NoError(t, err)

	booked := []models.BookedSession{{StartTime: "13:00", EndTime: "14:00"}}

	slots, err := ComputeSlots(w, booked, 1)
	require.NoError(t, err)
	require.Len(t, slots, 7)
	assert.NotContains(t, labels(slots), "13:00 - 14:00")
}

func TestComputeSlotsOverlappingBooking(t *testing.T) {
	booked := []models.BookedSession{{StartTime: "10:00", EndTime: "12:00"}}

	slots, err := ComputeSlots(Window{From: 8, To: 17}, booked, 2)
	require.NoError(t, err)

	got := starts(slots)
	for _, taken := range []int{9, 10, 11} {
		assert.NotContains(t, got, taken)
	}
	assert.Equal(t, []int{8, 12, 13, 14, 15}, got)
}

func TestComputeSlotsMidnightWindow(t *testing.T) {
	w, err := ParseWorkingHours("22:00", "06:00")
	require.NoError(t, err)

	slots, err := ComputeSlots(w, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 22}, starts(slots))
	assert.Equal(t, "22:00 - 00:00", slots[len(slots)-1].String())
}

func TestComputeSlotsBookingCrossesMidnight(t *testing.T) {
	booked := []models.BookedSession{{StartTime: "23:00", EndTime: "01:00"}}

	slots, err := ComputeSlots(Window{From: 20, To: 4}, booked, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 20, 21, 22}, starts(slots))
}

func TestComputeSlotsMidnightEndMeansEndOfDay(t *testing.T) {
	slots, err := ComputeSlots(Window{From: 21, To: 0}, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{21, 22, 23}, starts(slots))
	assert.Equal(t, "23:00 - 00:00", slots[2].String())
}

func TestComputeSlotsEmptyWindow(t *testing.T) {
	slots, err := ComputeSlots(Window{From: 10, To: 10}, nil, 1)
	require.NoError(t, err)
	assert.Empty(t, slots)

	slots, err = ComputeSlots(Window{From: 9, To: 11}, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeSlotsRejectsBadRequest(t *testing.T) {
	_, err := ComputeSlots(Window{From: 9, To: 17}, nil, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = ComputeSlots(Window{From: 9, To: 17}, []models.BookedSession{{StartTime: "x", EndTime: "10:00"}}, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestComputeSlotsIsDeterministic(t *testing.T) {
	booked := []models.BookedSession{
		{StartTime: "02:00", EndTime: "03:00"},
		{StartTime: "22:00", EndTime: "23:00"},
	}
	snapshot := append([]models.BookedSession(nil), booked...)

	first, err := ComputeSlots(Window{From: 20, To: 6}, booked, 1)
	require.NoError(t, err)
	second, err := ComputeSlots(Window{From: 20, To: 6}, booked, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, booked)
}

func TestSlotRoundTrip(t *testing.T) {
	slots, err := ComputeSlots(Window{From: 18, To: 3}, nil, 2)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, s := range slots {
		start, err := ParseSlotStart(s.String())
		require.NoError(t, err)
		assert.Equal(t, s.Start, start)
	}
}

func TestParseSlotStartRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "noon", "25:00 - 26:00", "-1:00 - 0:00"} {
		_, err := ParseSlotStart(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, bad)
	}
}

func TestParseWorkingHours(t *testing.T) {
	w, err := ParseWorkingHours("09:30", "17:45")
	require.NoError(t, err)
	assert.Equal(t, Window{From: 9, To: 17}, w)

	_, err = ParseWorkingHours("", "17:00")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	_, err = ParseWorkingHours("nine", "17:00")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestWindowOf(t *testing.T) {
	_, err := WindowOf(&models.DeveloperProfile{})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	profile := &models.DeveloperProfile{}
	profile.SetWorkingHours(models.WorkingHours{From: "22:00", To: "06:00"})

	w, err := WindowOf(profile)
	require.NoError(t, err)
	assert.Equal(t, Window{From: 22, To: 6}, w)
}

func TestAvailable(t *testing.T) {
	booked := []models.BookedSession{{StartTime: "13:00", EndTime: "14:00"}}

	ok, err := Available(Window{From: 9, To: 17}, booked, 1, 12)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Available(Window{From: 9, To: 17}, booked, 2, 12)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Available(Window{From: 9, To: 17}, booked, 1, 17)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndTime(t *testing.T) {
	assert.Equal(t, "11:00", EndTime(9, 2))
	assert.Equal(t, "00:00", EndTime(22, 2))
	assert.Equal(t, "01:00", EndTime(23, 2))
}
