package activity

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/httpclient"
	"github.com/igwedaniel/dripper/internal/proxy"
	"github.com/igwedaniel/dripper/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var address = common.HexToAddress("0x00000000000000000000000000000000000000d4")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewChecker_RequiresPlaceholder(t *testing.T) {
	_, err := NewChecker(nil, "https://indexer.example/wallets", httpclient.DefaultPolicy(), nil, 0, quietLogger())
	require.Error(t, err)
}

func TestCheck_FetchesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.True(t, strings.HasSuffix(r.URL.Path, "/"+address.Hex()))
		require.Equal(t, "cors", r.Header.Get("Sec-Fetch-Mode"))
		_, _ = w.Write([]byte(`{"txCount": 12, "rank": "top 10%"}`))
	}))
	defer srv.Close()

	client := httpclient.New(proxy.NewPool(nil, quietLogger()), quietLogger())
	cache := storage.NewInMemoryStorage()
	checker, err := NewChecker(client, srv.URL+"/be-api/wallets/monad_testnet/{address}", httpclient.DefaultPolicy(), cache, time.Minute, quietLogger())
	require.NoError(t, err)

	report, err := checker.Check(context.Background(), address)
	require.NoError(t, err)
	require.EqualValues(t, 12, report["txCount"])

	again, err := checker.Check(context.Background(), address)
	require.NoError(t, err)
	require.Equal(t, report, again)
	require.Equal(t, 1, hits)
}

func TestCheck_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := httpclient.New(proxy.NewPool(nil, quietLogger()), quietLogger())
	checker, err := NewChecker(client, srv.URL+"/{address}", httpclient.DefaultPolicy(), nil, 0, quietLogger())
	require.NoError(t, err)

	_, err = checker.Check(context.Background(), address)
	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
}
