package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

type slicePunches []model.RawPunchEvent

func (s slicePunches) GetPunches(_ context.Context, filter service.PunchFilter) ([]model.RawPunchEvent, error) {
	var out []model.RawPunchEvent
	for _, p := range s {
		if !p.Timestamp.Before(filter.Start) && p.Timestamp.Before(filter.End) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var day = time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

func samplePunches(n int) slicePunches {
	punches := make(slicePunches, n)
	for i := range punches {
		punches[i] = model.RawPunchEvent{
			ExternalID:   "p" + string(rune('a'+i)),
			EmployeeCode: "E1",
			Timestamp:    day.Add(time.Duration(8*60+i) * time.Minute),
			TerminalID:   "GATE-1",
			State:        model.PunchIn,
			Source:       model.SourceBiometric,
		}
	}
	return punches
}

func newTestClient(t *testing.T, url, token string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, Token: token, Name: "test", RequestsPerMinute: 600000})
	require.NoError(t, err)
	return c
}

func feedRequest(page int) service.FeedRequest {
	return service.FeedRequest{Start: day, End: day.AddDate(0, 0, 1), Page: page, PageSize: 2}
}

func TestClientAgainstReplayServer(t *testing.T) {
	srv := httptest.NewServer(NewReplayServer(samplePunches(5), "secret").Handler())
	defer srv.Close()

	c := newTestClient(t, srv.URL, "secret")
	assert.Equal(t, "test", c.Name())

	page, err := c.FetchPage(context.Background(), feedRequest(1))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 5, page.TotalRecords)
	require.Len(t, page.Punches, 2)
	assert.Equal(t, "pa", page.Punches[0].ExternalID)
	assert.Equal(t, model.PunchIn, page.Punches[0].State)
	assert.True(t, page.Punches[0].Timestamp.Equal(day.Add(8*time.Hour)))

	last, err := c.FetchPage(context.Background(), feedRequest(3))
	require.NoError(t, err)
	require.Len(t, last.Punches, 1)
	assert.Equal(t, "pe", last.Punches[0].ExternalID)

	beyond, err := c.FetchPage(context.Background(), feedRequest(4))
	require.NoError(t, err)
	assert.Empty(t, beyond.Punches)
}

func TestReplayServerRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(NewReplayServer(samplePunches(1), "secret").Handler())
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, "wrong").FetchPage(context.Background(), feedRequest(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFeedRejected)
	assert.True(t, common.IsPermanent(err))
}

func TestFetchPage_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     error
		wantRetry   bool
		wantBackoff time.Duration
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr:     common.ErrRateLimit,
			wantRetry:   true,
			wantBackoff: 7 * time.Second,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream down", http.StatusBadGateway)
			},
			wantErr:   common.ErrFeedUnavailable,
			wantRetry: true,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad window", http.StatusBadRequest)
			},
			wantErr: common.ErrFeedRejected,
		},
		{
			name: "truncated body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"page":1,"data":[`))
			},
			wantErr:   common.ErrInvalidPage,
			wantRetry: true,
		},
		{
			name: "record without external id",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"page":1,"total_pages":1,"data":[{"employee_code":"E1","timestamp":"2024-03-12T09:00:00Z"}]}`))
			},
			wantErr: common.ErrInvalidPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/punches", tt.handler)
			srv := httptest.NewServer(r)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, "").FetchPage(context.Background(), feedRequest(1))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantRetry, !common.IsPermanent(err))

			if tt.wantBackoff > 0 {
				var rl *common.RateLimitError
				require.True(t, errors.As(err, &rl))
				assert.Equal(t, tt.wantBackoff, rl.RetryAfter)
			}
		})
	}
}

func TestFetchPage_UnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, "").FetchPage(context.Background(), feedRequest(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFeedUnavailable)
	assert.False(t, common.IsPermanent(err))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewClient(Config{BaseURL: "ftp://terminals.local"})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	c, err := NewClient(Config{BaseURL: "https://terminals.local/api/"})
	require.NoError(t, err)
	assert.Equal(t, "terminals.local", c.Name())
}
