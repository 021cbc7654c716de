package hls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentURLs_RelativeResolution(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:9.8,
seg0.ts
#EXTINF:9.8,
seg1.ts
#EXTINF:4.2,
seg2.ts
#EXT-X-ENDLIST
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/x/master.m3u8", r.URL.Path)
		w.Write([]byte(manifest))
	}))
	defer server.Close()

	urls, err := SegmentURLs(context.Background(), server.Client(), server.URL+"/x/master.m3u8")
	require.NoError(t, err)
	require.Equal(t, []string{
		server.URL + "/x/seg0.ts",
		server.URL + "/x/seg1.ts",
		server.URL + "/x/seg2.ts",
	}, urls)
}

func TestSegmentURLs_AbsoluteAndMixedLines(t *testing.T) {
	manifest := "#EXTM3U\n" +
		"https://other-cdn.example.com/media/seg0.ts\n" +
		"not-a-segment.m3u8\n" +
		"\n" +
		"sub/seg1.ts\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest))
	}))
	defer server.Close()

	urls, err := SegmentURLs(context.Background(), server.Client(), server.URL+"/a/b/index.m3u8")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://other-cdn.example.com/media/seg0.ts",
		server.URL + "/a/b/sub/seg1.ts",
	}, urls)
}

func TestSegmentURLs_NoSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXT-X-ENDLIST\n"))
	}))
	defer server.Close()

	urls, err := SegmentURLs(context.Background(), server.Client(), server.URL+"/master.m3u8")
	require.NoError(t, err)
	require.Empty(t, urls)
}

func TestSegmentURLs_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	_, err := SegmentURLs(context.Background(), server.Client(), server.URL+"/master.m3u8")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 410")
}

func TestSegmentURLs_InvalidManifestURL(t *testing.T) {
	_, err := SegmentURLs(context.Background(), http.DefaultClient, "://bad")
	require.Error(t, err)
}
