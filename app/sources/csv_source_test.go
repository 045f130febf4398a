package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body))
	}))
}

func TestDugaSourceFetchListings(t *testing.T) {
	server := newFeedServer("ProductID,Title,URL\n" +
		"kmproduce-0456,作品その一,https://duga.jp/ppv/kmproduce-0456/\n" +
		"mousouzoku-9926,作品その二,https://duga.jp/ppv/mousouzoku-9926/\n" +
		",行に品番なし,https://duga.jp/ppv/nothing/\n")
	defer server.Close()

	source := NewDugaSource(server.URL, 5*time.Second, time.Millisecond)
	listings, err := source.FetchListings(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "kmproduce-0456", listings[0].SourceProductID)
	assert.Equal(t, "https://duga.jp/ppv/kmproduce-0456/", listings[0].URL)
	assert.JSONEq(t,
		`{"productid":"mousouzoku-9926","title":"作品その二","url":"https://duga.jp/ppv/mousouzoku-9926/"}`,
		string(listings[1].Body))
}

func TestDugaSourceCorruptFeedIsAnError(t *testing.T) {
	// A quoting error mid-file must fail the fetch, not truncate it
	server := newFeedServer("ProductID,Title\n" +
		"kmproduce-0456,作品その一\n" +
		"broken-0001,\"unterminated\n")
	defer server.Close()

	source := NewDugaSource(server.URL, 5*time.Second, time.Millisecond)
	_, err := source.FetchListings(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed row")
}
