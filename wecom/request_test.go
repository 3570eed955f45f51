package wecom_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-wecom-suite/token"
	"github.com/jrsteele09/go-wecom-suite/wecom"
	"github.com/stretchr/testify/require"
)

// rejectingServer replies with a credential-invalidity envelope until
// rejections is exhausted, then succeeds. It records the access_token query
// parameter of every call.
type rejectingServer struct {
	mu         sync.Mutex
	rejections int
	errcode    int
	tokens     []string
}

func (s *rejectingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokens = append(s.tokens, r.URL.Query().Get("access_token"))
	reject := s.rejections > 0
	if reject {
		s.rejections--
	}
	s.mu.Unlock()

	if reject {
		writeJSON(w, map[string]interface{}{"errcode": s.errcode, "errmsg": "invalid credential"})
		return
	}
	writeJSON(w, map[string]interface{}{"errcode": 0, "errmsg": "ok", "userid": "u1"})
}

func (s *rejectingServer) seenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func countingRefresh(prefix string) (*int, wecom.RefreshFunc) {
	count := new(int)
	return count, func(ctx context.Context) (token.AccessToken, error) {
		*count++
		return token.New(fmt.Sprintf("%s-%d", prefix, *count), time.Hour), nil
	}
}

func TestRequestRetriesOnceOnInvalidCredential(t *testing.T) {
	remote := &rejectingServer{rejections: 1, errcode: wecom.ErrCodeInvalidCredential}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)
	refreshes, refresh := countingRefresh("fresh")

	res, err := client.Request(context.Background(),
		srv.URL+"/cgi-bin/user/get?access_token=initial&userid=u1",
		&wecom.RequestOptions{Refresh: refresh})
	require.NoError(t, err)

	var resp struct {
		UserID string `json:"userid"`
	}
	require.NoError(t, res.Bind(&resp))
	require.Equal(t, "u1", resp.UserID)

	seen := remote.seenTokens()
	require.Len(t, seen, 2)
	require.Equal(t, "initial", seen[0])
	require.Equal(t, "fresh-1", seen[1])
	require.NotEqual(t, seen[0], seen[1])
	require.Equal(t, 1, *refreshes)
}

func TestRequestRetryPreservesOtherQueryParameters(t *testing.T) {
	var lastQuery map[string][]string
	remote := &rejectingServer{rejections: 1, errcode: wecom.ErrCodeCredentialExpired}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query()
		remote.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)
	_, refresh := countingRefresh("fresh")

	_, err := client.Request(context.Background(),
		srv.URL+"/cgi-bin/user/get?access_token=initial&userid=u1&lang=en",
		&wecom.RequestOptions{Refresh: refresh})
	require.NoError(t, err)

	require.Equal(t, []string{"u1"}, lastQuery["userid"])
	require.Equal(t, []string{"en"}, lastQuery["lang"])
	require.Equal(t, []string{"fresh-1"}, lastQuery["access_token"])
}

func TestRequestExhaustsRetryBudget(t *testing.T) {
	remote := &rejectingServer{rejections: 100, errcode: wecom.ErrCodeInvalidCredential}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)
	refreshes, refresh := countingRefresh("fresh")

	_, err := client.Request(context.Background(),
		srv.URL+"/api?access_token=initial",
		&wecom.RequestOptions{Refresh: refresh})

	var apiErr *wecom.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, int64(wecom.ErrCodeInvalidCredential), apiErr.Code)

	// initial attempt plus the full default budget
	require.Len(t, remote.seenTokens(), wecom.DefaultRetryBudget+1)
	require.Equal(t, wecom.DefaultRetryBudget, *refreshes)
}

func TestRequestExternalCredentialIsNeverRefreshed(t *testing.T) {
	remote := &rejectingServer{rejections: 100, errcode: wecom.ErrCodeInvalidCredential}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)

	_, err := client.Request(context.Background(), srv.URL+"/api?access_token=caller-owned", nil)

	var apiErr *wecom.APIError
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.CredentialInvalid())
	require.Len(t, remote.seenTokens(), 1)
}

func TestRequestFatalAPIErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"errcode": 48002, "errmsg": "api forbidden"})
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)
	refreshes, refresh := countingRefresh("fresh")

	_, err := client.Request(context.Background(), srv.URL+"/api?access_token=x",
		&wecom.RequestOptions{Refresh: refresh})

	var apiErr *wecom.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, int64(48002), apiErr.Code)
	require.Equal(t, "api forbidden", apiErr.Message)
	require.Zero(t, *refreshes)
}

func TestRequestTransportErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)
	_, refresh := countingRefresh("fresh")

	_, err := client.Request(context.Background(), srv.URL+"/api?access_token=x",
		&wecom.RequestOptions{Refresh: refresh})

	var transportErr *wecom.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	require.Equal(t, 1, calls)
}

func TestRequestParseErrorCarriesRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"errcode": `)
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)

	_, err := client.Request(context.Background(), srv.URL+"/api", nil)

	var parseErr *wecom.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, `{"errcode": `, string(parseErr.RawBody))
}

func TestRequestReturnsRawBodyForNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)

	res, err := client.Request(context.Background(), srv.URL+"/media", nil)
	require.NoError(t, err)
	require.Nil(t, res.JSON())
	require.Equal(t, []byte{0xff, 0xd8, 0xff}, res.Body)
}

func TestRequestMergesHeadersOverDefaults(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, map[string]interface{}{"errcode": 0})
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)

	_, err := client.Request(context.Background(), srv.URL+"/api", &wecom.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"k": "v"},
		Header: http.Header{
			"X-Request-Source": []string{"test"},
			"User-Agent":       []string{"custom-agent"},
		},
	})
	require.NoError(t, err)

	// caller header augments the defaults
	require.Equal(t, "test", got.Get("X-Request-Source"))
	// caller header overrides a default key
	require.Equal(t, "custom-agent", got.Get("User-Agent"))
	// untouched default survives
	require.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestRequestDecodesHostileBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{\"errcode\":0,\"userid\":9007199254740995,\"name\":\"dept\nname\"}")
	}))
	t.Cleanup(srv.Close)

	client := wecom.New(testSuiteID, testSuiteSecret)

	res, err := client.Request(context.Background(), srv.URL+"/api", nil)
	require.NoError(t, err)

	m, ok := res.JSON().(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "dept\nname", m["name"])

	id, ok := m["userid"].(json.Number)
	require.True(t, ok)
	require.Equal(t, "9007199254740995", id.String())
}

// End-to-end: a corp-scoped call whose token the remote rejects is retried
// with a freshly minted corp token.
func TestCorpGetRefreshesRejectedCorpToken(t *testing.T) {
	remote := newFakeRemote()
	rejected := false
	var corpTokens []string

	mux := http.NewServeMux()
	mux.Handle("/cgi-bin/service/get_suite_token", http.HandlerFunc(remote.handleSuiteToken))
	mux.Handle("/cgi-bin/service/get_corp_token", http.HandlerFunc(remote.handleCorpToken))
	mux.HandleFunc("/cgi-bin/department/list", func(w http.ResponseWriter, r *http.Request) {
		corpTokens = append(corpTokens, r.URL.Query().Get("access_token"))
		if !rejected {
			rejected = true
			writeJSON(w, map[string]interface{}{"errcode": wecom.ErrCodeInvalidCredential, "errmsg": "invalid credential"})
			return
		}
		writeJSON(w, map[string]interface{}{"errcode": 0, "department": []interface{}{}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	codes := wecom.NewStaticPermanentCodes()
	codes.Register("corpA", "perm-code-a")

	client := wecom.New(testSuiteID, testSuiteSecret,
		wecom.WithBaseURL(srv.URL),
		wecom.WithSuiteTicket(testSuiteTicket),
		wecom.WithPermanentCodeSource(codes),
	)

	var out struct {
		Departments []interface{} `json:"department"`
	}
	err := client.CorpGet(context.Background(), "corpA", "/cgi-bin/department/list", nil, &out)
	require.NoError(t, err)

	require.Len(t, corpTokens, 2)
	require.Equal(t, "corp-token-corpA-1", corpTokens[0])
	require.Equal(t, "corp-token-corpA-2", corpTokens[1])
	require.Equal(t, 2, remote.corpFetchCount("corpA"))
}
