package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/ingestion"
	"github.com/ignite/rfm-segmentation/internal/pkg/distlock"
	"github.com/ignite/rfm-segmentation/internal/repository/postgres"
	"github.com/ignite/rfm-segmentation/internal/rfm"
)

var testDay = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

// fakeLock implements distlock.RunLock in memory.
type fakeLock struct {
	held     bool
	acquired bool
	released bool
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.acquired = true
	return true, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

type fakeRunner struct {
	result *rfm.Result
	err    error
	params rfm.Params
}

func (r *fakeRunner) Run(_ context.Context, params rfm.Params) (*rfm.Result, error) {
	r.params = params
	return r.result, r.err
}

type fakeSegments struct {
	latest      time.Time
	stats       []domain.SegmentStats
	assignments []domain.ClusterAssignment
	customer    *domain.Customer
}

func (f *fakeSegments) LatestCalcDate(context.Context) (time.Time, error) {
	if f.latest.IsZero() {
		return time.Time{}, postgres.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeSegments) SegmentStats(context.Context, time.Time) ([]domain.SegmentStats, error) {
	return f.stats, nil
}

func (f *fakeSegments) SegmentCustomers(_ context.Context, _ time.Time, segment domain.Segment, limit, offset int) ([]domain.ClusterAssignment, int, error) {
	var members []domain.ClusterAssignment
	for _, a := range f.assignments {
		if a.SegmentName == segment {
			members = append(members, a)
		}
	}
	total := len(members)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return members[offset:end], total, nil
}

func (f *fakeSegments) SegmentAssignments(_ context.Context, _ time.Time, segment domain.Segment) ([]domain.ClusterAssignment, error) {
	var members []domain.ClusterAssignment
	for _, a := range f.assignments {
		if a.SegmentName == segment {
			members = append(members, a)
		}
	}
	return members, nil
}

func (f *fakeSegments) CustomerHistory(_ context.Context, customerID string) ([]domain.ClusterAssignment, error) {
	var out []domain.ClusterAssignment
	for _, a := range f.assignments {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, postgres.ErrNotFound
	}
	return out, nil
}

func (f *fakeSegments) Customer(_ context.Context, customerID string) (*domain.Customer, error) {
	if f.customer != nil && f.customer.CustomerID == customerID {
		return f.customer, nil
	}
	return nil, postgres.ErrNotFound
}

type memSink struct {
	customers int
	orders    int
}

func (m *memSink) UpsertCustomers(_ context.Context, cs []domain.Customer) (int, error) {
	m.customers += len(cs)
	return len(cs), nil
}

func (m *memSink) UpsertOrders(_ context.Context, orders []domain.Order) (int, error) {
	m.orders += len(orders)
	return len(orders), nil
}

func testAssignments() []domain.ClusterAssignment {
	return []domain.ClusterAssignment{
		{CustomerID: "C001", CalcDate: testDay, ClusterID: 0, SegmentName: domain.SegmentChampions,
			Score: domain.ClusterScore{RecencyDays: 5, Frequency: 2, Monetary: 250, Distance: 0.1}},
		{CustomerID: "C002", CalcDate: testDay, ClusterID: 1, SegmentName: domain.SegmentLost,
			Score: domain.ClusterScore{RecencyDays: 366, Frequency: 0, Monetary: 0, Distance: 0.2}},
		{CustomerID: "C003", CalcDate: testDay, ClusterID: 0, SegmentName: domain.SegmentChampions,
			Score: domain.ClusterScore{RecencyDays: 9, Frequency: 4, Monetary: 800, Distance: 0.3}},
	}
}

func setupHandlers(runner Runner, lock *fakeLock, segs SegmentReader, sink ingestion.Sink) *Handlers {
	locks := func(time.Time) distlock.RunLock { return lock }
	return NewHandlers(runner, locks, segs, ingestion.NewService(sink), RunDefaults{WindowDays: 365, K: 5}, "")
}

func doRequest(h *Handlers, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	router := SetupRoutes(h)
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunPipeline(t *testing.T) {
	runner := &fakeRunner{result: &rfm.Result{Summary: rfm.Summary{
		CalcDate:  testDay,
		Customers: 3,
		K:         2,
		Converged: true,
	}}}
	lock := &fakeLock{}
	h := setupHandlers(runner, lock, &fakeSegments{}, &memSink{})

	body := bytes.NewBufferString(`{"calc_date":"2024-01-31","window_days":180,"k":2}`)
	w := doRequest(h, http.MethodPost, "/api/pipeline/run", body, "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 180, runner.params.WindowDays)
	assert.Equal(t, 2, runner.params.K)
	assert.True(t, runner.params.CalcDate.Equal(testDay))
	assert.True(t, lock.acquired)
	assert.True(t, lock.released)

	var summary rfm.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Customers)
	assert.True(t, summary.Converged)
}

func TestRunPipelineDefaults(t *testing.T) {
	runner := &fakeRunner{result: &rfm.Result{}}
	h := setupHandlers(runner, &fakeLock{}, &fakeSegments{}, &memSink{})

	w := doRequest(h, http.MethodPost, "/api/pipeline/run", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 365, runner.params.WindowDays)
	assert.Equal(t, 5, runner.params.K)
}

func TestRunPipelineConflict(t *testing.T) {
	runner := &fakeRunner{result: &rfm.Result{}}
	lock := &fakeLock{held: true}
	h := setupHandlers(runner, lock, &fakeSegments{}, &memSink{})

	w := doRequest(h, http.MethodPost, "/api/pipeline/run", nil, "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, lock.released)
}

func TestRunPipelineInvalidParams(t *testing.T) {
	runner := &fakeRunner{err: &rfm.Error{Kind: rfm.KindInvalidParameter, Message: "k exceeds customer count"}}
	h := setupHandlers(runner, &fakeLock{}, &fakeSegments{}, &memSink{})

	w := doRequest(h, http.MethodPost, "/api/pipeline/run", bytes.NewBufferString(`{"k":50}`), "application/json")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_parameter", resp["kind"])
}

func TestRunPipelineBadCalcDate(t *testing.T) {
	runner := &fakeRunner{result: &rfm.Result{}}
	h := setupHandlers(runner, &fakeLock{}, &fakeSegments{}, &memSink{})

	w := doRequest(h, http.MethodPost, "/api/pipeline/run", bytes.NewBufferString(`{"calc_date":"31/01/2024"}`), "application/json")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetSegments(t *testing.T) {
	segs := &fakeSegments{
		latest: testDay,
		stats: []domain.SegmentStats{
			{SegmentName: domain.SegmentChampions, CustomerCount: 2, AvgMonetary: 525},
			{SegmentName: domain.SegmentLost, CustomerCount: 1, AvgRecencyDays: 366},
		},
	}
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, segs, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/segments", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		CalcDate string                `json:"calc_date"`
		Segments []domain.SegmentStats `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-31", resp.CalcDate)
	require.Len(t, resp.Segments, 2)
	assert.Equal(t, domain.SegmentChampions, resp.Segments[0].SegmentName)
}

func TestGetSegmentsNoRuns(t *testing.T) {
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, &fakeSegments{}, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/segments", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSegmentCustomers(t *testing.T) {
	segs := &fakeSegments{latest: testDay, assignments: testAssignments()}
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, segs, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/segments/champions/customers?limit=1", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data       []domain.ClusterAssignment `json:"data"`
		Pagination PaginationMeta             `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasMore)
}

func TestGetSegmentCustomersUnknownSegment(t *testing.T) {
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, &fakeSegments{latest: testDay}, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/segments/whales/customers", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCustomer(t *testing.T) {
	segs := &fakeSegments{
		latest:      testDay,
		assignments: testAssignments(),
		customer:    &domain.Customer{CustomerID: "C001", Email: "alice@example.com"},
	}
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, segs, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/customers/C001", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Customer       domain.Customer            `json:"customer"`
		History        []domain.ClusterAssignment `json:"history"`
		CurrentSegment domain.Segment             `json:"current_segment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "C001", resp.Customer.CustomerID)
	assert.Equal(t, domain.SegmentChampions, resp.CurrentSegment)
	require.Len(t, resp.History, 1)
}

func TestGetCustomerNotFound(t *testing.T) {
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, &fakeSegments{latest: testDay}, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/customers/C404", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportSegmentCSV(t *testing.T) {
	segs := &fakeSegments{latest: testDay, assignments: testAssignments()}
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, segs, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/export/segments/champions", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "champions-2024-01-31.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "customer_id")
	assert.Contains(t, lines[1], "C001")
}

func TestExportSegmentS3NotConfigured(t *testing.T) {
	segs := &fakeSegments{latest: testDay, assignments: testAssignments()}
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, segs, &memSink{})

	w := doRequest(h, http.MethodGet, "/api/export/segments/champions?upload=s3", nil, "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestIngestUpload(t *testing.T) {
	sink := &memSink{}
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, &fakeSegments{}, sink)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("customers", "customers.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("customer_id,email\nC001,a@b.c\nC002,\n"))
	require.NoError(t, err)
	fw, err = mw.CreateFormFile("orders", "orders.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("order_id,customer_id,order_date,amount\nO1,C001,2024-01-26,99.50\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := doRequest(h, http.MethodPost, "/api/ingest", &buf, mw.FormDataContentType())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, sink.customers)
	assert.Equal(t, 1, sink.orders)
}

func TestIngestUploadEmpty(t *testing.T) {
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, &fakeSegments{}, &memSink{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	w := doRequest(h, http.MethodPost, "/api/ingest", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthNoDeps(t *testing.T) {
	h := setupHandlers(&fakeRunner{}, &fakeLock{}, &fakeSegments{}, &memSink{})

	w := doRequest(h, http.MethodGet, "/health", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not_configured", status.Checks["database"].Status)
}
