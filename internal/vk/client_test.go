package vk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LigeronAhill/smmaster/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		Token:      "test-token",
		GroupID:    123,
		BaseURL:    srv.URL,
		RatePerSec: 1000, // keep tests fast
	}, logx.Nop())
	return c, srv
}

func TestWallPost(t *testing.T) {
	t.Parallel()

	var gotForm string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wall.post" {
			t.Errorf("path = %q, want /wall.post", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("auth header = %q", auth)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotForm = r.PostForm.Encode()
		w.Write([]byte(`{"response":{"post_id":77}}`))
	}))

	if err := c.WallPost(context.Background(), "hello", "photo-123_456"); err != nil {
		t.Fatalf("WallPost: %v", err)
	}
	for _, want := range []string{"owner_id=-123", "from_group=1", "message=hello", "v=5.199"} {
		if !strings.Contains(gotForm, want) {
			t.Errorf("form %q missing %q", gotForm, want)
		}
	}
}

func TestWallPostAPIError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":15,"error_msg":"Access denied"}}`))
	}))

	err := c.WallPost(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Access denied") {
		t.Errorf("error %q does not carry the api message", err)
	}
}

func TestUploadPhotoFlow(t *testing.T) {
	t.Parallel()

	var steps []string
	mux := http.NewServeMux()

	var uploadURL string
	mux.HandleFunc("/photos.getUploadServer", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "getUploadServer")
		w.Write([]byte(`{"response":{"upload_url":"` + uploadURL + `"}}`))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "upload")
		if _, _, err := r.FormFile("file1"); err != nil {
			t.Errorf("missing file1 part: %v", err)
		}
		w.Write([]byte(`{"server":42,"photos_list":"[...]","hash":"abc"}`))
	})
	mux.HandleFunc("/photos.save", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "save")
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("server"); got != "42" {
			t.Errorf("server = %q, want 42", got)
		}
		if got := r.PostForm.Get("hash"); got != "abc" {
			t.Errorf("hash = %q, want abc", got)
		}
		w.Write([]byte(`{"response":[{"id":456,"owner_id":-123}]}`))
	})

	c, srv := newTestClient(t, mux)
	uploadURL = srv.URL + "/upload"

	ref, err := c.UploadPhoto(context.Background(), strings.NewReader("fakejpeg"), "photo.jpg")
	if err != nil {
		t.Fatalf("UploadPhoto: %v", err)
	}
	if ref != "photo-123_456" {
		t.Errorf("ref = %q, want photo-123_456", ref)
	}
	if want := []string{"getUploadServer", "upload", "save"}; strings.Join(steps, ",") != strings.Join(want, ",") {
		t.Errorf("steps = %v, want %v", steps, want)
	}
}

func TestUploadVideoFlow(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var uploadURL string
	var uploaded bool
	mux.HandleFunc("/video.save", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"upload_url":"` + uploadURL + `","video_id":789,"owner_id":-123}}`))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		uploaded = true
		if _, _, err := r.FormFile("video_file"); err != nil {
			t.Errorf("missing video_file part: %v", err)
		}
		w.Write([]byte(`{"size":8}`))
	})

	c, srv := newTestClient(t, mux)
	uploadURL = srv.URL + "/upload"

	ref, err := c.UploadVideo(context.Background(), strings.NewReader("fakemp4"), "video.mp4")
	if err != nil {
		t.Fatalf("UploadVideo: %v", err)
	}
	if ref != "video-123_789" {
		t.Errorf("ref = %q, want video-123_789", ref)
	}
	if !uploaded {
		t.Error("video bytes never uploaded")
	}
}

func TestInitPicksAlbum(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos.getAlbums" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"response":{"items":[{"id":10,"title":"Main"},{"id":20,"title":"Posts"}]}}`))
	}))

	if err := c.Init(context.Background(), "Posts"); err != nil {
		t.Fatal(err)
	}
	if c.albumID != 20 {
		t.Errorf("album id = %d, want 20 (matched by title)", c.albumID)
	}

	if err := c.Init(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if c.albumID != 10 {
		t.Errorf("album id = %d, want first album", c.albumID)
	}
}
