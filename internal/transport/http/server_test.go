package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronobook/backend/internal/catalog"
	"chronobook/backend/internal/clock"
	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/service/bookings"
	"chronobook/backend/internal/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBookingService struct {
	requestFn    func(ctx context.Context, in bookings.RequestInput) ([]domain.Booking, error)
	statusFn     func(ctx context.Context, in bookings.StatusInput) (domain.Booking, error)
	rescheduleFn func(ctx context.Context, in bookings.RescheduleInput) (domain.Booking, error)
	paymentFn    func(ctx context.Context, in bookings.PaymentInput) (domain.Booking, error)
	getFn        func(ctx context.Context, actor identity.Actor, id uuid.UUID) (domain.Booking, error)
	listFn       func(ctx context.Context, in bookings.ListInput) ([]domain.Booking, error)
	freeSlotsFn  func(ctx context.Context, in bookings.FreeSlotsInput) ([]domain.Interval, error)
}

func (f *fakeBookingService) RequestBooking(ctx context.Context, in bookings.RequestInput) ([]domain.Booking, error) {
	if f.requestFn == nil {
		panic("RequestBooking not configured")
	}
	return f.requestFn(ctx, in)
}

func (f *fakeBookingService) UpdateBookingStatus(ctx context.Context, in bookings.StatusInput) (domain.Booking, error) {
	if f.statusFn == nil {
		panic("UpdateBookingStatus not configured")
	}
	return f.statusFn(ctx, in)
}

func (f *fakeBookingService) RescheduleBooking(ctx context.Context, in bookings.RescheduleInput) (domain.Booking, error) {
	if f.rescheduleFn == nil {
		panic("RescheduleBooking not configured")
	}
	return f.rescheduleFn(ctx, in)
}

func (f *fakeBookingService) MarkPayment(ctx context.Context, in bookings.PaymentInput) (domain.Booking, error) {
	if f.paymentFn == nil {
		panic("MarkPayment not configured")
	}
	return f.paymentFn(ctx, in)
}

func (f *fakeBookingService) GetBooking(ctx context.Context, actor identity.Actor, id uuid.UUID) (domain.Booking, error) {
	if f.getFn == nil {
		panic("GetBooking not configured")
	}
	return f.getFn(ctx, actor, id)
}

func (f *fakeBookingService) ListBookings(ctx context.Context, in bookings.ListInput) ([]domain.Booking, error) {
	if f.listFn == nil {
		panic("ListBookings not configured")
	}
	return f.listFn(ctx, in)
}

func (f *fakeBookingService) FreeSlots(ctx context.Context, in bookings.FreeSlotsInput) ([]domain.Interval, error) {
	if f.freeSlotsFn == nil {
		panic("FreeSlots not configured")
	}
	return f.freeSlotsFn(ctx, in)
}

var testVerifier = identity.NewVerifier("test-secret", "chronobook", time.Hour)

func bearer(t *testing.T, actor identity.Actor) string {
	t.Helper()
	token, err := testVerifier.Issue(actor)
	require.NoError(t, err)
	return "Bearer " + token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, r http.Handler, method, path, auth string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func newTestRouter(svc bookingService, opts ...func(*Options)) *gin.Engine {
	o := Options{Service: svc, Verifier: testVerifier, Retries: 2}
	for _, fn := range opts {
		fn(&o)
	}
	return NewRouter(o)
}

var customer = identity.Actor{UserID: "u-cust", Role: identity.RoleCustomer}

func TestHealthProbes(t *testing.T) {
	r := newTestRouter(&fakeBookingService{}, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	})

	w, env := do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = do(t, r, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NOT_READY", env.Error.Code)
}

func TestRequireAuth(t *testing.T) {
	r := newTestRouter(&fakeBookingService{})

	w, env := do(t, r, http.MethodGet, "/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/v1/bookings", "Bearer not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)
}

func TestRequestBooking_PassesActorAndIdempotencyKey(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var got bookings.RequestInput
	svc := &fakeBookingService{requestFn: func(_ context.Context, in bookings.RequestInput) ([]domain.Booking, error) {
		got = in
		return []domain.Booking{{ID: uuid.New(), CustomerID: in.Actor.UserID, StartTime: in.StartTime, EndTime: in.StartTime.Add(time.Hour), Status: domain.StatusPending}}, nil
	}}
	r := newTestRouter(svc)

	w, env := do(t, r, http.MethodPost, "/v1/bookings", bearer(t, customer), gin.H{
		"serviceId":         "s1",
		"staffId":           "st1",
		"locationId":        "l1",
		"startTime":         start.Format(time.RFC3339),
		"recurrencePattern": "WEEKLY",
	}, "Idempotency-Key", " key-1 ")

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, customer, got.Actor)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, domain.RecurrencePattern("WEEKLY"), got.RecurrencePattern)
	assert.True(t, got.StartTime.Equal(start))

	var data struct {
		Bookings []bookingResponse `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Bookings, 1)
	assert.Equal(t, "u-cust", data.Bookings[0].CustomerID)
}

func TestRequestBooking_Validation(t *testing.T) {
	r := newTestRouter(&fakeBookingService{})

	w, env := do(t, r, http.MethodPost, "/v1/bookings", bearer(t, customer), gin.H{"serviceId": "s1", "staffId": "st1", "locationId": "l1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Message, "startTime")

	w, _ = do(t, r, http.MethodPost, "/v1/bookings", bearer(t, customer), gin.H{"staffId": "st1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	conflictAt := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"invalid request", domain.InvalidRequest("bad"), http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid assignment", domain.InvalidAssignment("nope"), http.StatusUnprocessableEntity, "INVALID_ASSIGNMENT"},
		{"past date", domain.PastDate(conflictAt), http.StatusUnprocessableEntity, "PAST_DATE"},
		{"slot unavailable", domain.SlotUnavailable(conflictAt, 3), http.StatusConflict, "SLOT_UNAVAILABLE"},
		{"illegal transition", domain.IllegalTransition(domain.StatusPending, domain.StatusCompleted), http.StatusConflict, "ILLEGAL_TRANSITION"},
		{"not found", domain.BookingNotFound("x"), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", domain.Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBookingService{getFn: func(context.Context, identity.Actor, uuid.UUID) (domain.Booking, error) {
				return domain.Booking{}, tt.err
			}}
			w, env := do(t, newTestRouter(svc), http.MethodGet, "/v1/bookings/"+uuid.NewString(), bearer(t, customer), nil)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantKind, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestSlotUnavailable_Details(t *testing.T) {
	conflictAt := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	svc := &fakeBookingService{requestFn: func(context.Context, bookings.RequestInput) ([]domain.Booking, error) {
		return nil, domain.SlotUnavailable(conflictAt, 3)
	}}
	w, env := do(t, newTestRouter(svc), http.MethodPost, "/v1/bookings", bearer(t, customer), gin.H{
		"serviceId": "s1", "staffId": "st1", "locationId": "l1", "startTime": "2026-03-02T09:00:00Z",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(3), env.Error.Details["occurrence"])
	assert.Equal(t, conflictAt.Format(time.RFC3339), env.Error.Details["conflictAt"])
}

func TestBusy_RetriesThenRetryAfter(t *testing.T) {
	calls := 0
	svc := &fakeBookingService{statusFn: func(context.Context, bookings.StatusInput) (domain.Booking, error) {
		calls++
		return domain.Booking{}, domain.Busy(1500*time.Millisecond, nil)
	}}
	w, env := do(t, newTestRouter(svc), http.MethodPost, "/v1/bookings/"+uuid.NewString()+"/status", bearer(t, customer), gin.H{"status": "CANCELLED"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "BUSY", env.Error.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, 2, calls)
}

func TestBookingID_MustBeUUID(t *testing.T) {
	r := newTestRouter(&fakeBookingService{})
	w, env := do(t, r, http.MethodPost, "/v1/bookings/not-a-uuid/payment", bearer(t, customer), gin.H{"paymentStatus": "PAID"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestListBookings_ParsesQuery(t *testing.T) {
	var got bookings.ListInput
	svc := &fakeBookingService{listFn: func(_ context.Context, in bookings.ListInput) ([]domain.Booking, error) {
		got = in
		return nil, nil
	}}
	r := newTestRouter(svc)

	w, _ := do(t, r, http.MethodGet, "/v1/bookings?staffId=st1&from=2026-03-01T00:00:00Z&to=2026-03-08T00:00:00Z&status=PENDING,CONFIRMED&limit=20", bearer(t, customer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "st1", got.StaffID)
	assert.Equal(t, 20, got.Limit)
	assert.Equal(t, []domain.BookingStatus{domain.StatusPending, domain.StatusConfirmed}, got.Statuses)
	assert.True(t, got.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	w, _ = do(t, r, http.MethodGet, "/v1/bookings?from=yesterday", bearer(t, customer), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	svc := &fakeBookingService{freeSlotsFn: func(context.Context, bookings.FreeSlotsInput) ([]domain.Interval, error) {
		return nil, nil
	}}
	r := newTestRouter(svc, func(o *Options) { o.Limiter = NewMemoryLimiter(1, time.Minute) })

	w, _ := do(t, r, http.MethodGet, "/v1/availability?staffId=st1&locationId=l1&serviceId=s1&date=2026-03-02", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env := do(t, r, http.MethodGet, "/v1/availability?staffId=st1&locationId=l1&serviceId=s1&date=2026-03-02", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "call %d", i+1)
	}
	ok, _ := l.Allow(ctx, "other")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryLimiter_EvictsExpiredClients(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(5, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := l.Allow(ctx, key)
		require.NoError(t, err)
	}
	assert.Len(t, l.visitors, 3)

	now = now.Add(2 * time.Minute)
	_, err := l.Allow(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, l.visitors, 1, "expired windows are dropped")
	assert.Contains(t, l.visitors, "d")
}

func TestRouter_EndToEnd(t *testing.T) {
	seed, err := catalog.LoadSeed("../../../configs/catalog.yaml")
	require.NoError(t, err)
	cat, err := catalog.NewMemory(seed)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := bookings.NewService(memory.NewBookingRepo(), cat, bookings.WithClock(clock.NewManual(now)))
	r := newTestRouter(svc)
	auth := bearer(t, identity.Actor{UserID: "u-http", Role: identity.RoleCustomer})

	w, env := do(t, r, http.MethodGet, "/v1/availability?staffId=st1&locationId=l1&serviceId=s1&date=2026-03-02", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var slots struct {
		Slots []slotResponse `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	require.NotEmpty(t, slots.Slots)
	start := slots.Slots[0].Start

	body := gin.H{"serviceId": "s1", "staffId": "st1", "locationId": "l1", "startTime": start.Format(time.RFC3339)}
	w, env = do(t, r, http.MethodPost, "/v1/bookings", auth, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Bookings []bookingResponse `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Bookings, 1)
	assert.Equal(t, "u-http", created.Bookings[0].CustomerID)

	w, env = do(t, r, http.MethodPost, "/v1/bookings", auth, body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SLOT_UNAVAILABLE", env.Error.Code)

	w, env = do(t, r, http.MethodPost, "/v1/bookings/"+created.Bookings[0].ID+"/status", auth, gin.H{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled bookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)

	w, _ = do(t, r, http.MethodPost, "/v1/bookings", auth, body)
	assert.Equal(t, http.StatusCreated, w.Code, "cancelled booking frees the slot")
}
