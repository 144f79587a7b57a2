package events

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	mu       sync.Mutex
	events   map[string]*Event
	approved map[string]int
	names    map[string]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:   make(map[string]*Event),
		approved: make(map[string]int),
		names:    make(map[string]string),
	}
}

func (r *fakeEventRepo) Create(ctx context.Context, params CreateParams) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event := &Event{
		ID:          params.ID,
		Title:       params.Title,
		OrganizerID: params.OrganizerID,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		Capacity:    params.Capacity,
		Status:      StatusUpcoming,
		CreatedAt:   time.Now().UTC(),
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event, ok := r.events[id]; ok {
		copied := *event
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (r *fakeEventRepo) GetSummary(ctx context.Context, id string) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	summary := Summary{Event: *event, OrganizerName: r.names[event.OrganizerID]}
	summary.AttendeeCount = r.approved[id]
	return &summary, nil
}

func (r *fakeEventRepo) List(ctx context.Context, filters Filters, pagination Pagination) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []Summary
	for _, event := range r.events {
		if event.Status != filters.Status {
			continue
		}
		if filters.Center != nil {
			distance := HaversineMeters(filters.Center.Latitude, filters.Center.Longitude, event.Latitude, event.Longitude)
			if distance > filters.RadiusMeters {
				continue
			}
		}
		summary := Summary{Event: *event, OrganizerName: r.names[event.OrganizerID]}
		summary.AttendeeCount = r.approved[event.ID]
		items = append(items, summary)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	if len(items) > pagination.Limit {
		items = items[:pagination.Limit]
	}
	return items, nil
}

func (r *fakeEventRepo) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok || event.Status != fromStatus {
		return false, nil
	}
	event.Status = toStatus
	return true, nil
}

func (r *fakeEventRepo) MarkEnded(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed int64
	for _, event := range r.events {
		if event.Status == StatusUpcoming && event.EndTime.Before(now) {
			event.Status = StatusEnded
			changed++
		}
	}
	return changed, nil
}

func newTestEventService() (*Service, *fakeEventRepo) {
	repo := newFakeEventRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func validCreateInput() CreateInput {
	start := time.Now().Add(24 * time.Hour)
	return CreateInput{
		Title:     "Schoko-Pudding Sonntag",
		Latitude:  52.520008,
		Longitude: 13.404954,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Capacity:  15,
	}
}

func TestCreateEvent(t *testing.T) {
	svc, _ := newTestEventService()

	event, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", validCreateInput())

	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	require.Equal(t, StatusUpcoming, event.Status)
	require.Equal(t, 15, event.Capacity)
	require.Equal(t, "01HQZX3Y4K6F7G8H9J0K1M2N3P", event.OrganizerID)
}

func TestCreateEventDefaultsCapacity(t *testing.T) {
	svc, _ := newTestEventService()

	input := validCreateInput()
	input.Capacity = 0
	event, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", input)

	require.NoError(t, err)
	require.Equal(t, DefaultCapacity, event.Capacity)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newTestEventService()

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"empty title", func(in *CreateInput) { in.Title = "  " }, "title"},
		{"markup-only title", func(in *CreateInput) { in.Title = "<b></b>" }, "title"},
		{"bad latitude", func(in *CreateInput) { in.Latitude = 91 }, "latitude"},
		{"bad longitude", func(in *CreateInput) { in.Longitude = -181 }, "longitude"},
		{"missing start", func(in *CreateInput) { in.StartTime = time.Time{} }, "startTime"},
		{"end before start", func(in *CreateInput) { in.EndTime = in.StartTime.Add(-time.Hour) }, "endTime"},
		{"negative capacity", func(in *CreateInput) { in.Capacity = -1 }, "capacity"},
		{"huge capacity", func(in *CreateInput) { in.Capacity = MaxCapacity + 1 }, "capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validCreateInput()
			tt.mutate(&input)

			_, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", input)

			var filterErr FilterError
			require.ErrorAs(t, err, &filterErr)
			require.Equal(t, tt.field, filterErr.Field)
		})
	}
}

func TestCreateEventSanitizesTitle(t *testing.T) {
	svc, _ := newTestEventService()

	input := validCreateInput()
	input.Title = "Pudding <script>alert(1)</script>Party"
	event, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", input)

	require.NoError(t, err)
	require.Equal(t, "Pudding Party", event.Title)
}

func TestListFiltersByRadius(t *testing.T) {
	svc, repo := newTestEventService()

	berlin := validCreateInput()
	munich := validCreateInput()
	munich.Title = "Vanille Vibes"
	munich.Latitude = 48.1351
	munich.Longitude = 11.5820
	munich.StartTime = berlin.StartTime.Add(time.Hour)
	munich.EndTime = munich.StartTime.Add(2 * time.Hour)

	_, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", berlin)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", munich)
	require.NoError(t, err)
	require.Len(t, repo.events, 2)

	summaries, err := svc.List(context.Background(), Filters{
		Status:       StatusUpcoming,
		Center:       &Point{Latitude: 52.52, Longitude: 13.40},
		RadiusMeters: 10000,
	}, Pagination{Limit: 50})

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "Schoko-Pudding Sonntag", summaries[0].Title)
}

func TestListOrdersByStartTime(t *testing.T) {
	svc, _ := newTestEventService()

	later := validCreateInput()
	later.Title = "Later"
	later.StartTime = later.StartTime.Add(48 * time.Hour)
	later.EndTime = later.StartTime.Add(time.Hour)
	earlier := validCreateInput()
	earlier.Title = "Earlier"

	_, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", later)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", earlier)
	require.NoError(t, err)

	summaries, err := svc.List(context.Background(), Filters{Status: StatusUpcoming}, Pagination{Limit: 50})

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "Earlier", summaries[0].Title)
	require.Equal(t, "Later", summaries[1].Title)
}

func TestCancelEvent(t *testing.T) {
	svc, repo := newTestEventService()

	event, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", validCreateInput())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), event.ID, "01HQZX3Y4K6F7G8H9J0K1M2N3P"))
	require.Equal(t, StatusCancelled, repo.events[event.ID].Status)
}

func TestCancelEventForbiddenForNonOrganizer(t *testing.T) {
	svc, _ := newTestEventService()

	event, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", validCreateInput())
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), event.ID, "01HQZX3Y4K6F7G8H9J0K1M2N3Q")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCancelEventTwiceInvalidState(t *testing.T) {
	svc, _ := newTestEventService()

	event, err := svc.Create(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3P", validCreateInput())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), event.ID, "01HQZX3Y4K6F7G8H9J0K1M2N3P"))
	err = svc.Cancel(context.Background(), event.ID, "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelMissingEvent(t *testing.T) {
	svc, _ := newTestEventService()

	err := svc.Cancel(context.Background(), "01HQZX3Y4K6F7G8H9J0K1M2N3Z", "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseFiltersDefaults(t *testing.T) {
	filters, pagination, err := ParseFilters(url.Values{})

	require.NoError(t, err)
	require.Equal(t, StatusUpcoming, filters.Status)
	require.Nil(t, filters.Center)
	require.Equal(t, 50, pagination.Limit)
}

func TestParseFiltersCenterAndRadius(t *testing.T) {
	values := url.Values{}
	values.Set("lat", "52.52")
	values.Set("lng", "13.40")
	values.Set("radius", "10000")

	filters, _, err := ParseFilters(values)

	require.NoError(t, err)
	require.NotNil(t, filters.Center)
	require.InDelta(t, 52.52, filters.Center.Latitude, 1e-9)
	require.InDelta(t, 13.40, filters.Center.Longitude, 1e-9)
	require.InDelta(t, 10000, filters.RadiusMeters, 1e-9)
}

func TestParseFiltersDefaultRadius(t *testing.T) {
	values := url.Values{}
	values.Set("lat", "52.52")
	values.Set("lng", "13.40")

	filters, _, err := ParseFilters(values)

	require.NoError(t, err)
	require.InDelta(t, float64(DefaultRadiusMeters), filters.RadiusMeters, 1e-9)
}

func TestParseFiltersValidation(t *testing.T) {
	tests := []struct {
		name  string
		set   map[string]string
		field string
	}{
		{"lat without lng", map[string]string{"lat": "52.52"}, "lat"},
		{"lng without lat", map[string]string{"lng": "13.40"}, "lat"},
		{"radius without center", map[string]string{"radius": "5000"}, "radius"},
		{"bad lat", map[string]string{"lat": "95", "lng": "13.40"}, "lat"},
		{"bad lng", map[string]string{"lat": "52.52", "lng": "999"}, "lng"},
		{"negative radius", map[string]string{"lat": "52.52", "lng": "13.40", "radius": "-1"}, "radius"},
		{"bad status", map[string]string{"status": "SOMEDAY"}, "status"},
		{"bad limit", map[string]string{"limit": "abc"}, "limit"},
		{"zero limit", map[string]string{"limit": "0"}, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			for key, value := range tt.set {
				values.Set(key, value)
			}

			_, _, err := ParseFilters(values)

			var filterErr FilterError
			require.ErrorAs(t, err, &filterErr)
			require.Equal(t, tt.field, filterErr.Field)
		})
	}
}

func TestParseFiltersStatusCaseInsensitive(t *testing.T) {
	values := url.Values{}
	values.Set("status", "ended")

	filters, _, err := ParseFilters(values)

	require.NoError(t, err)
	require.Equal(t, StatusEnded, filters.Status)
}
