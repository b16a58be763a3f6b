package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotbook/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProjects struct {
	mock.Mock
}

func (m *MockProjects) GetProject(ctx context.Context, id int64) (*schedule.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedule.Project), args.Error(1)
}

func (m *MockProjects) ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*schedule.Location, error) {
	args := m.Called(ctx, projectID, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedule.Location), args.Error(1)
}

type MockSlots struct {
	mock.Mock
}

func (m *MockSlots) ListActiveTimeSlots(ctx context.Context, locationID int64, dayOfWeek int) ([]schedule.TimeSlot, error) {
	args := m.Called(ctx, locationID, dayOfWeek)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schedule.TimeSlot), args.Error(1)
}

func (m *MockSlots) IsDateBlocked(ctx context.Context, locationID int64, date time.Time) (bool, error) {
	args := m.Called(ctx, locationID, date)
	return args.Bool(0), args.Error(1)
}

type fakeOccupancy map[schedule.Clock]int

func (f fakeOccupancy) CountActiveByStart(ctx context.Context, locationID int64, date time.Time) (map[schedule.Clock]int, error) {
	return f, nil
}

type fakeBusy struct {
	intervals []schedule.Interval
	calls     int
}

func (f *fakeBusy) GetBusyIntervals(ctx context.Context, location *schedule.Location, date time.Time, tz *time.Location) []schedule.Interval {
	f.calls++
	return f.intervals
}

// 2026-01-01 is a Thursday.
var now = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

func testProject() *schedule.Project {
	return &schedule.Project{ID: 1, Timezone: "UTC", AdvanceBookingDays: 30, ReferencePrefix: "BK"}
}

func testLocation(capacity int) *schedule.Location {
	return &schedule.Location{ID: 5, ProjectID: 1, MaxConcurrentBookings: capacity, IsActive: true}
}

func slot(h1, m1, h2, m2 int) schedule.TimeSlot {
	return schedule.TimeSlot{StartTime: schedule.NewClock(h1, m1), EndTime: schedule.NewClock(h2, m2), IsActive: true}
}

type fixture struct {
	projects *MockProjects
	slots    *MockSlots
	busy     *fakeBusy
	occ      fakeOccupancy
}

func newFixture(project *schedule.Project, location *schedule.Location, baseSlots []schedule.TimeSlot, dow int) *fixture {
	f := &fixture{
		projects: new(MockProjects),
		slots:    new(MockSlots),
		busy:     &fakeBusy{},
		occ:      fakeOccupancy{},
	}
	f.projects.On("GetProject", mock.Anything, int64(1)).Return(project, nil)
	f.projects.On("ResolveLocation", mock.Anything, int64(1), (*int64)(nil)).Return(location, nil)
	f.slots.On("IsDateBlocked", mock.Anything, location.ID, mock.Anything).Return(false, nil)
	f.slots.On("ListActiveTimeSlots", mock.Anything, location.ID, dow).Return(baseSlots, nil)
	return f
}

func (f *fixture) service() Service {
	return NewService(f.projects, f.slots, f.occ, f.busy)
}

func TestComputeAvailability_MondayScenario(t *testing.T) {
	f := newFixture(testProject(), testLocation(1), []schedule.TimeSlot{slot(9, 0, 10, 0)}, 1)

	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "09:00", res.Slots[0].Start.String())
	assert.Equal(t, "10:00", res.Slots[0].End.String())
	assert.Nil(t, res.Slots[0].SpotsLeft)
	assert.Empty(t, res.Message)

	f.occ[schedule.NewClock(9, 0)] = 1

	res, err = f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
	assert.NotNil(t, res.Slots)
	assert.Empty(t, res.Message)
}

func TestComputeAvailability_SpotsLeftForSharedLocations(t *testing.T) {
	f := newFixture(testProject(), testLocation(3), []schedule.TimeSlot{slot(9, 0, 10, 0), slot(10, 0, 11, 0)}, 1)
	f.occ[schedule.NewClock(9, 0)] = 2
	f.occ[schedule.NewClock(10, 0)] = 3

	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	require.NotNil(t, res.Slots[0].SpotsLeft)
	assert.Equal(t, 1, *res.Slots[0].SpotsLeft)
}

func TestComputeAvailability_OneOfferPerStart(t *testing.T) {
	f := newFixture(testProject(), testLocation(1), []schedule.TimeSlot{slot(9, 0, 10, 0), slot(9, 0, 9, 30), slot(10, 0, 11, 0)}, 1)

	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)
	require.NoError(t, err)
	require.Len(t, res.Slots, 2)
	assert.Equal(t, "09:00", res.Slots[0].Start.String())
	assert.Equal(t, "10:00", res.Slots[0].End.String())
	assert.Equal(t, "10:00", res.Slots[1].Start.String())
}

func TestComputeAvailability_BlockedDate(t *testing.T) {
	projects := new(MockProjects)
	slots := new(MockSlots)
	projects.On("GetProject", mock.Anything, int64(1)).Return(testProject(), nil)
	projects.On("ResolveLocation", mock.Anything, int64(1), (*int64)(nil)).Return(testLocation(1), nil)
	slots.On("IsDateBlocked", mock.Anything, int64(5), mock.Anything).Return(true, nil)

	svc := NewService(projects, slots, fakeOccupancy{}, &fakeBusy{})
	res, err := svc.ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)

	require.NoError(t, err)
	assert.Empty(t, res.Slots)
	assert.Equal(t, MessageDateUnavailable, res.Message)
	slots.AssertNotCalled(t, "ListActiveTimeSlots", mock.Anything, mock.Anything, mock.Anything)
}

func TestComputeAvailability_BusyIntervals(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		busy     schedule.Interval
		wantFree bool
	}{
		{"partial overlap", 1, schedule.Interval{Start: schedule.NewClock(9, 30), End: schedule.NewClock(9, 45)}, false},
		{"adjacent before", 1, schedule.Interval{Start: schedule.NewClock(8, 0), End: schedule.NewClock(9, 0)}, true},
		{"adjacent after", 1, schedule.Interval{Start: schedule.NewClock(10, 0), End: schedule.NewClock(11, 0)}, true},
		{"covering", 1, schedule.Interval{Start: schedule.NewClock(0, 0), End: schedule.NewClock(24, 0)}, false},
		{"shared location ignores calendar", 2, schedule.Interval{Start: schedule.NewClock(9, 30), End: schedule.NewClock(9, 45)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testProject(), testLocation(tt.capacity), []schedule.TimeSlot{slot(9, 0, 10, 0)}, 1)
			f.busy.intervals = []schedule.Interval{tt.busy}

			res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFree, len(res.Slots) == 1)

			if tt.capacity > 1 {
				assert.Equal(t, 0, f.busy.calls)
			}
		})
	}
}

func TestComputeAvailability_AdvanceWindow(t *testing.T) {
	project := testProject()
	project.AdvanceBookingDays = 7

	f := newFixture(project, testLocation(1), []schedule.TimeSlot{slot(9, 0, 10, 0)}, 4)

	// boundary day is bookable
	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-08", now)
	require.NoError(t, err)
	assert.Empty(t, res.Message)
	assert.Len(t, res.Slots, 1)

	res, err = f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-09", now)
	require.NoError(t, err)
	assert.Equal(t, MessageTooFarAhead, res.Message)
	assert.Empty(t, res.Slots)
}

func TestComputeAvailability_PastDate(t *testing.T) {
	f := newFixture(testProject(), testLocation(1), nil, 3)

	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2025-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, MessageTooSoon, res.Message)
}

func TestComputeAvailability_MinAdvanceHours(t *testing.T) {
	project := testProject()
	project.MinAdvanceHours = 24

	// earliest start is 2026-01-02 10:00, a Friday
	f := newFixture(project, testLocation(1), []schedule.TimeSlot{slot(9, 0, 10, 0), slot(11, 0, 12, 0)}, 5)

	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-02", now)
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "11:00", res.Slots[0].Start.String())

	res, err = f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-01", now)
	require.NoError(t, err)
	assert.Equal(t, MessageTooSoon, res.Message)
}

func TestComputeAvailability_ProjectTimezone(t *testing.T) {
	if _, err := time.LoadLocation("Asia/Tokyo"); err != nil {
		t.Skip("tzdata not available")
	}
	project := testProject()
	project.Timezone = "Asia/Tokyo"

	// 2026-01-04 20:00 UTC is already Monday 05:00 in Tokyo
	late := time.Date(2026, 1, 4, 20, 0, 0, 0, time.UTC)
	f := newFixture(project, testLocation(1), []schedule.TimeSlot{slot(4, 0, 5, 0), slot(9, 0, 10, 0)}, 1)

	res, err := f.service().ComputeAvailability(context.Background(), 1, nil, "2026-01-05", late)
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "09:00", res.Slots[0].Start.String())
}

func TestComputeAvailability_NoActiveLocation(t *testing.T) {
	projects := new(MockProjects)
	projects.On("GetProject", mock.Anything, int64(1)).Return(testProject(), nil)
	projects.On("ResolveLocation", mock.Anything, int64(1), (*int64)(nil)).Return(nil, schedule.ErrNoActiveLocation)

	svc := NewService(projects, new(MockSlots), fakeOccupancy{}, nil)
	res, err := svc.ComputeAvailability(context.Background(), 1, nil, "2026-01-05", now)

	require.NoError(t, err)
	assert.Equal(t, MessageNoActiveLocation, res.Message)
	assert.Empty(t, res.Slots)
}

func TestComputeAvailability_Errors(t *testing.T) {
	projects := new(MockProjects)
	projects.On("GetProject", mock.Anything, int64(1)).Return(testProject(), nil)
	projects.On("GetProject", mock.Anything, int64(2)).Return(nil, schedule.ErrProjectNotFound)
	explicit := int64(99)
	projects.On("ResolveLocation", mock.Anything, int64(1), &explicit).Return(nil, schedule.ErrLocationNotFound)

	svc := NewService(projects, new(MockSlots), fakeOccupancy{}, nil)

	_, err := svc.ComputeAvailability(context.Background(), 1, nil, "05/01/2026", now)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = svc.ComputeAvailability(context.Background(), 2, nil, "2026-01-05", now)
	assert.ErrorIs(t, err, schedule.ErrProjectNotFound)

	_, err = svc.ComputeAvailability(context.Background(), 1, &explicit, "2026-01-05", now)
	assert.True(t, errors.Is(err, schedule.ErrLocationNotFound))
}
