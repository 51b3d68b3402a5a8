package faucet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/clock"
	"github.com/igwedaniel/dripper/internal/httpclient"
	"github.com/igwedaniel/dripper/internal/proxy"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testAddress = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newClaimer(t *testing.T, handler http.HandlerFunc) *Claimer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := httpclient.New(proxy.NewPool(nil, quietLogger()), quietLogger(), httpclient.WithSleeper(&clock.Recorder{}))
	return NewClaimer(client, srv.URL, httpclient.DefaultPolicy(), quietLogger())
}

func TestClaim_Success(t *testing.T) {
	var received map[string]string
	claimer := newClaimer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, httpclient.BrowserUserAgent, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_, _ = w.Write([]byte(`{"success":true,"data":{"hash":"0xfeed","amount":"500000000000000000"}}`))
	})

	result := claimer.Claim(context.Background(), testAddress)
	require.True(t, result.Success)
	require.Equal(t, "0xfeed", result.Hash)
	require.Equal(t, "500000000000000000", result.Amount.String())
	require.Equal(t, testAddress.Hex(), received["address"])
}

func TestClaim_NumericAmount(t *testing.T) {
	claimer := newClaimer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"hash":"0x1","amount":1000}}`))
	})

	result := claimer.Claim(context.Background(), testAddress)
	require.True(t, result.Success)
	require.Equal(t, int64(1000), result.Amount.Int64())
}

func TestClaim_Declined(t *testing.T) {
	claimer := newClaimer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})

	result := claimer.Claim(context.Background(), testAddress)
	require.False(t, result.Success)
	require.Equal(t, "faucet claim failed", result.Error)
}

func TestClaim_ErrorStatusCarriesReason(t *testing.T) {
	claimer := newClaimer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success":false,"error":"Please wait 24 hours"}`))
	})

	result := claimer.Claim(context.Background(), testAddress)
	require.False(t, result.Success)
	require.Equal(t, "Please wait 24 hours (status 429)", result.Error)
}

func TestClaim_MalformedBody(t *testing.T) {
	claimer := newClaimer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>cloudflare</html>`))
	})

	result := claimer.Claim(context.Background(), testAddress)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "invalid faucet response")
}

func TestClaim_TransportFailureIsDowngraded(t *testing.T) {
	client := httpclient.New(proxy.NewPool(nil, quietLogger()), quietLogger())
	claimer := NewClaimer(client, "http://127.0.0.1:1/unreachable", httpclient.DefaultPolicy(), quietLogger())

	result := claimer.Claim(context.Background(), testAddress)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "request failed after 1 attempts")
}
