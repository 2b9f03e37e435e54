package mono

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"monobudget/internal/cache"
	"monobudget/internal/ratelimit"
	"monobudget/pkg/clock"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	dir := t.TempDir()

	now := time.Unix(1_000_000, 0)
	clk := clock.NewFunc(func() time.Time { return now })

	c, err := cache.New(filepath.Join(dir, "cache"), clk)
	require.NoError(t, err)

	// advance the clock instead of sleeping so throttle waits are instant
	l, err := ratelimit.New(filepath.Join(dir, "rl.json"), clk,
		func(d time.Duration) { now = now.Add(d) })
	require.NoError(t, err)

	return NewClient("token-abc", c, l, Options{
		BaseURL: baseURL,
		Clock:   clk,
		Sleep:   func(d time.Duration) { now = now.Add(d) },
	})
}

func itemsJSON(items []StatementItem) string {
	raw, _ := json.Marshal(items)
	return string(raw)
}

func makeBatch(prefix string, n int, ts int64) []StatementItem {
	out := make([]StatementItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, StatementItem{
			ID:     fmt.Sprintf("%s-%d", prefix, i),
			Time:   ts - int64(i),
			Amount: -100,
		})
	}
	return out
}

func TestClientInfoCachedAfterFirstCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/personal/client-info", r.URL.Path)
		require.Equal(t, "token-abc", r.Header.Get("X-Token"))
		calls++
		fmt.Fprint(w, `{"name":"Test User","accounts":[{"id":"acc1","balance":1000,"currencyCode":980}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	info, err := c.ClientInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Test User", info.Name)
	require.Len(t, info.Accounts, 1)

	_, err = c.ClientInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestStatementPaginationDedupesAndTerminates(t *testing.T) {
	// Batches of 500, 500, 120 with one id shared between batch 1 and 2.
	batch1 := makeBatch("b1", PageCap, 9_000_000)
	batch2 := makeBatch("b2", PageCap, 8_000_000)
	batch2[0].ID = "b1-499" // overlap
	batch3 := makeBatch("b3", 120, 7_000_000)

	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/personal/statement/acc1/"))
		call++
		switch call {
		case 1:
			fmt.Fprint(w, itemsJSON(batch1))
		case 2:
			fmt.Fprint(w, itemsJSON(batch2))
		default:
			fmt.Fprint(w, itemsJSON(batch3))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	items, err := c.Statement(context.Background(), "acc1", 1, 9_000_001)
	require.NoError(t, err)
	require.Len(t, items, 2*PageCap+120-1)
	require.EqualValues(t, 3, c.Requests())

	seen := map[string]bool{}
	for _, it := range items {
		require.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
	}

	// Repeat comes from cache: same rows, no extra upstream requests.
	again, err := c.Statement(context.Background(), "acc1", 1, 9_000_001)
	require.NoError(t, err)
	require.Len(t, again, 2*PageCap+120-1)
	require.EqualValues(t, 3, c.Requests())
}

func TestStatementPaginationSameTimestampTerminates(t *testing.T) {
	// A full page where every item shares one timestamp must still make
	// progress: new_to = cur_to - 1.
	full := make([]StatementItem, PageCap)
	for i := range full {
		full[i] = StatementItem{ID: fmt.Sprintf("x-%d", i), Time: 5_000_000, Amount: -1}
	}

	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			fmt.Fprint(w, itemsJSON(full))
			return
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	items, err := c.Statement(context.Background(), "acc1", 4_999_999, 5_000_001)
	require.NoError(t, err)
	require.Len(t, items, PageCap)
	require.LessOrEqual(t, call, 2)
}

func TestRetryOn429HonorsRetryAfter(t *testing.T) {
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			w.Header().Set("Retry-After", strconv.Itoa(5))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"name":"ok","accounts":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	info, err := c.ClientInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", info.Name)
	require.Equal(t, 2, call)
}

func TestAuthErrorNotRetried(t *testing.T) {
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.ClientInfo(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	require.Equal(t, 1, call)
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"name":"ok","accounts":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.ClientInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, call)
}

func TestClientErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no such account")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.ClientInfo(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Contains(t, apiErr.Body, "no such account")
}
