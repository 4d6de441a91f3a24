package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/internal/attendance"
	"kiosk/internal/certification"
	"kiosk/internal/clock"
	"kiosk/internal/directory"
	"kiosk/internal/queue"
	"kiosk/internal/report"
	"kiosk/internal/sentinel"
)

// fakeDir serves the admin-side directory reads the handler needs.
type fakeDir struct {
	users    map[int64]directory.User
	nextID   int64
	deleted  []int64
	lastFace []byte
}

func newFakeDir() *fakeDir {
	return &fakeDir{users: make(map[int64]directory.User)}
}

func (f *fakeDir) Create(_ context.Context, name, badgeCode string) (int64, error) {
	for _, u := range f.users {
		if u.BadgeCode == badgeCode {
			return 0, sentinel.ErrConflict
		}
	}
	f.nextID++
	f.users[f.nextID] = directory.User{ID: f.nextID, Name: name, BadgeCode: badgeCode, Status: directory.StatusCheckedOut}
	return f.nextID, nil
}

func (f *fakeDir) Delete(_ context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDir) List(_ context.Context) ([]directory.User, error) {
	var out []directory.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeDir) ListByStatus(_ context.Context, status directory.Status) ([]directory.User, error) {
	var out []directory.User
	for _, u := range f.users {
		if u.Status == status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeDir) GetByID(_ context.Context, id int64) (directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return directory.User{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (f *fakeDir) SetPhoto(_ context.Context, id int64, url string) error {
	u, ok := f.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.PhotoURL = &url
	f.users[id] = u
	return nil
}

func (f *fakeDir) SetFaceDescriptor(_ context.Context, id int64, descriptor []byte) error {
	if _, ok := f.users[id]; !ok {
		return sentinel.ErrNotFound
	}
	f.lastFace = descriptor
	return nil
}

type staticSource struct {
	rows []report.Row
}

func (s *staticSource) EntriesBetween(_ context.Context, start, end time.Time) ([]report.Row, error) {
	var out []report.Row
	for _, r := range s.rows {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixture struct {
	router *gin.Engine
	store  *attendance.MemoryStore
	dir    *fakeDir
	source *staticSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := attendance.NewMemoryStore()
	clk := clock.Fixed(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	engine := attendance.NewEngine(store, clk)
	dir := newFakeDir()
	source := &staticSource{}
	deriver := report.NewDeriver(source, clk)
	certs := certification.NewMemoryStore()

	h := New(engine, dir, certs, deriver, queue.NewInMemory(16), nil, nil, Config{
		AdminKey:      "test-admin-key",
		JWTIssuer:     "kiosk-test",
		JWTSigningKey: "test-signing-key",
		AccessTTL:     time.Hour,
	})
	router := gin.New()
	h.Register(router)
	return &fixture{router: router, store: store, dir: dir, source: source}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) adminToken(t *testing.T) map[string]string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/admin/login", `{"admin_key":"test-admin-key"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return map[string]string{"Authorization": "Bearer " + resp.AccessToken}
}

func TestCheckInFlow(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddUser("Alice", "a")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/check-in", `{"rfid_code":"a"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Alice!")
	assert.Contains(t, w.Body.String(), `"status":"checked_in"`)

	// second check-in is rejected with the current status attached
	w = f.do(t, http.MethodPost, "/api/check-in", `{"rfid_code":"a"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"current_status":"checked_in"`)
	assert.Len(t, f.store.Log(), 1)
}

func TestCheckInUnknownBadge(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/check-in", `{"rfid_code":"ghost"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "User not found.")
}

func TestCheckInRequiresBadge(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/check-in", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUserStatusDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddUser("Alice", "a")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/get-user-status", `{"rfid_code":"a"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"checked_out"`)
	assert.Empty(t, f.store.Log())
}

func TestBreakEndByUserID(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.AddUser("Alice", "a")
	require.NoError(t, err)
	for _, path := range []string{"/api/check-in", "/api/break/start"} {
		w := f.do(t, http.MethodPost, path, `{"rfid_code":"a"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := f.do(t, http.MethodPost, "/api/break/end", `{"user_id":1}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "break is over")

	user, err := f.store.Find(context.Background(), attendance.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, directory.StatusCheckedIn, user.Status)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/users", "", map[string]string{"Authorization": "Bearer bogus"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminLoginRejectsWrongKey(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/admin/login", `{"admin_key":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminUserLifecycle(t *testing.T) {
	f := newFixture(t)
	headers := f.adminToken(t)

	w := f.do(t, http.MethodPost, "/api/admin/users/create", `{"name":"Dana","rfid_code":"d"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":1`)

	// duplicate badge
	w = f.do(t, http.MethodPost, "/api/admin/users/create", `{"name":"Other","rfid_code":"d"}`, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/admin/users/delete/1", "", headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/admin/users/delete/1", "", headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestForceCheckout(t *testing.T) {
	f := newFixture(t)
	headers := f.adminToken(t)
	_, err := f.store.AddUser("Alice", "a")
	require.NoError(t, err)
	w := f.do(t, http.MethodPost, "/api/check-in", `{"rfid_code":"a"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/admin/force-checkout", `{"user_id":1}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "has been forced to check out")

	w = f.do(t, http.MethodPost, "/api/admin/force-checkout", `{"user_id":1}`, headers)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already checked out")
}

func TestCertificationEndpoints(t *testing.T) {
	f := newFixture(t)
	headers := f.adminToken(t)

	w := f.do(t, http.MethodPost, "/api/admin/certifications/create", `{"name":"Forklift"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/admin/certifications/create", `{"name":"Forklift"}`, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = f.do(t, http.MethodPost, "/api/admin/certifications/assign", `{"user_id":1,"certification_id":1}`, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/admin/certifications/assign", `{"user_id":1,"certification_id":1}`, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already assigned")

	w = f.do(t, http.MethodGet, "/api/admin/users/1/certifications", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Forklift")

	w = f.do(t, http.MethodDelete, "/api/admin/certifications/revoke/1/1", "", headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/admin/certifications/revoke/1/1", "", headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceCSVDownload(t *testing.T) {
	f := newFixture(t)
	headers := f.adminToken(t)
	name := "Alice"
	f.source.rows = []report.Row{
		{UserID: 1, Name: &name, Action: attendance.ActionCheckIn, Timestamp: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
	}

	w := f.do(t, http.MethodGet, "/api/admin/attendance/download?date=2024-03-15", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance_log_2024-03-15.csv")
	assert.Contains(t, w.Body.String(), "Alice,check_in")

	// no data for the date
	w = f.do(t, http.MethodGet, "/api/admin/attendance/download?date=2024-01-01", "", headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendancePDFDownload(t *testing.T) {
	f := newFixture(t)
	headers := f.adminToken(t)
	name := "Alice"
	f.source.rows = []report.Row{
		{UserID: 1, Name: &name, Action: attendance.ActionCheckIn, Timestamp: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
		{UserID: 1, Name: &name, Action: attendance.ActionCheckOut, Timestamp: time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)},
	}

	w := f.do(t, http.MethodGet, "/api/admin/attendance/pdf?date=2024-03-15", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestStatusLists(t *testing.T) {
	f := newFixture(t)
	f.dir.users[1] = directory.User{ID: 1, Name: "Ina", Status: directory.StatusCheckedIn}
	f.dir.users[2] = directory.User{ID: 2, Name: "Brett", Status: directory.StatusOnBreak}

	w := f.do(t, http.MethodGet, "/api/status/checkedin", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ina")
	assert.NotContains(t, w.Body.String(), "Brett")

	w = f.do(t, http.MethodGet, "/api/status/onbreak", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Brett")
}
