package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

func apiRequest(t *testing.T, d *Daemon, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, "http://"+d.APIAddr()+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, payload
}

func decodeBody(t *testing.T, payload []byte, target any) {
	t.Helper()
	if err := json.Unmarshal(payload, target); err != nil {
		t.Fatalf("decode %q: %v", payload, err)
	}
}

func TestAPIStatusEndpoint(t *testing.T) {
	d, _, _ := newDaemon(t)
	startDaemon(t, d)

	resp, payload := apiRequest(t, d, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, payload)
	}
	var body struct {
		Running      bool   `json:"running"`
		DatabasePath string `json:"databasePath"`
	}
	decodeBody(t, payload, &body)
	if !body.Running || body.DatabasePath == "" {
		t.Fatalf("unexpected status body: %s", payload)
	}
}

func TestAPIUploadAndPoll(t *testing.T) {
	d, _, _ := newDaemon(t)
	startDaemon(t, d)
	source := writeUpload(t, t.TempDir(), "ride.mp4")

	resp, payload := apiRequest(t, d, http.MethodPost, "/api/videos", uploadRequest{OriginalName: "ride.mp4", Path: source})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", resp.StatusCode, payload)
	}
	var video store.Video
	decodeBody(t, payload, &video)
	if video.ID == "" {
		t.Fatalf("missing video id: %s", payload)
	}

	resp, payload = apiRequest(t, d, http.MethodGet, "/api/videos/"+video.ID+"/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("poll status = %d: %s", resp.StatusCode, payload)
	}
	var poll struct {
		Status       string `json:"status"`
		Progress     int    `json:"progress"`
		CurrentStep  string `json:"currentStep"`
		ErrorMessage string `json:"errorMessage"`
	}
	decodeBody(t, payload, &poll)
	if poll.Status != string(store.VideoUploaded) || poll.Progress != 0 {
		t.Fatalf("unexpected poll body: %s", payload)
	}

	resp, _ = apiRequest(t, d, http.MethodGet, "/api/videos", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
}

func TestAPIPollPrefersJobStatus(t *testing.T) {
	d, _, st := newDaemon(t)
	startDaemon(t, d)
	ctx := context.Background()

	source := writeUpload(t, t.TempDir(), "hike.mp4")
	video, err := d.RegisterUpload(ctx, "hike.mp4", source)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}

	// Advance the job while the video row still says uploaded. The poll
	// contract must follow the job, not the stale video row.
	job, err := st.CreateJob(ctx, video.ID)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := st.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if _, err := st.UpdateJobCheckpoint(ctx, job.ID, 25, store.StepFixingCuts); err != nil {
		t.Fatalf("UpdateJobCheckpoint: %v", err)
	}

	resp, payload := apiRequest(t, d, http.MethodGet, "/api/videos/"+video.ID+"/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("poll status = %d: %s", resp.StatusCode, payload)
	}
	var poll struct {
		Status      string `json:"status"`
		Progress    int    `json:"progress"`
		CurrentStep string `json:"currentStep"`
	}
	decodeBody(t, payload, &poll)
	if poll.Status != string(store.JobProcessing) {
		t.Fatalf("expected processing from job row, got %s", payload)
	}
	if poll.Progress != 25 || poll.CurrentStep != string(store.StepFixingCuts) {
		t.Fatalf("unexpected poll body: %s", payload)
	}
}

func TestAPIPollUnknownVideo(t *testing.T) {
	d, _, _ := newDaemon(t)
	startDaemon(t, d)

	resp, _ := apiRequest(t, d, http.MethodGet, "/api/videos/nope/status", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAPIStreamAndDownload(t *testing.T) {
	d, cfg, st := newDaemon(t)
	startDaemon(t, d)
	ctx := context.Background()

	source := writeUpload(t, t.TempDir(), "surf.mp4")
	video, err := d.RegisterUpload(ctx, "surf.mp4", source)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}

	resp, payload := apiRequest(t, d, http.MethodGet, "/api/videos/"+video.ID+"/stream", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stream before processing = %d: %s", resp.StatusCode, payload)
	}
	var conflict struct {
		Error string `json:"error"`
	}
	decodeBody(t, payload, &conflict)
	if conflict.Error != "not_ready" {
		t.Fatalf("conflict error = %q", conflict.Error)
	}

	artifact := filepath.Join(cfg.Paths.ArtifactDir, "video-"+video.ID+".mp4")
	if err := os.WriteFile(artifact, []byte("processed bytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := st.SetVideoCompleted(ctx, video.ID, artifact, store.FixesApplied{AudioSyncFixed: true}); err != nil {
		t.Fatalf("SetVideoCompleted: %v", err)
	}

	resp, payload = apiRequest(t, d, http.MethodGet, "/api/videos/"+video.ID+"/stream", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream = %d: %s", resp.StatusCode, payload)
	}
	if string(payload) != "processed bytes" {
		t.Fatalf("stream body = %q", payload)
	}
	if resp.Header.Get("X-Stream-Session") == "" {
		t.Fatal("expected stream session header")
	}
	if resp.Header.Get("Accept-Ranges") != "bytes" {
		t.Fatalf("accept-ranges = %q", resp.Header.Get("Accept-Ranges"))
	}

	req, err := http.NewRequest(http.MethodGet, "http://"+d.APIAddr()+"/api/videos/"+video.ID+"/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Range", "bytes=0-3")
	ranged, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("range request: %v", err)
	}
	partial, _ := io.ReadAll(ranged.Body)
	ranged.Body.Close()
	if ranged.StatusCode != http.StatusPartialContent || string(partial) != "proc" {
		t.Fatalf("range = %d %q", ranged.StatusCode, partial)
	}

	resp, payload = apiRequest(t, d, http.MethodGet, "/api/videos/"+video.ID+"/download", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download = %d: %s", resp.StatusCode, payload)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "surf_smoothed.mp4") {
		t.Fatalf("disposition = %q", disposition)
	}
}

func TestAPIDeleteVideo(t *testing.T) {
	d, _, _ := newDaemon(t)
	startDaemon(t, d)

	source := writeUpload(t, t.TempDir(), "trash.mp4")
	video, err := d.RegisterUpload(context.Background(), "trash.mp4", source)
	if err != nil {
		t.Fatalf("RegisterUpload: %v", err)
	}

	resp, _ := apiRequest(t, d, http.MethodDelete, "/api/videos/"+video.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete = %d", resp.StatusCode)
	}
	resp, _ = apiRequest(t, d, http.MethodDelete, "/api/videos/"+video.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete = %d", resp.StatusCode)
	}
}

func TestAPIDrafts(t *testing.T) {
	d, _, st := newDaemon(t)
	startDaemon(t, d)
	ctx := context.Background()

	draft, err := st.CreateDraft(ctx, "vid-1", "Beach Day (Auto-Backup)", "/artifacts/video-1.mp4", 1024, true)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	resp, payload := apiRequest(t, d, http.MethodGet, "/api/drafts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list drafts = %d", resp.StatusCode)
	}
	var listing struct {
		Drafts []*store.Draft `json:"drafts"`
	}
	decodeBody(t, payload, &listing)
	if len(listing.Drafts) != 1 || listing.Drafts[0].ID != draft.ID {
		t.Fatalf("unexpected drafts: %s", payload)
	}
	if listing.Drafts[0].FilePath != "/artifacts/video-1.mp4" || listing.Drafts[0].FileSize != 1024 {
		t.Fatalf("expected artifact reference in listing: %s", payload)
	}

	resp, _ = apiRequest(t, d, http.MethodDelete, "/api/drafts/"+draft.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete draft = %d", resp.StatusCode)
	}
	resp, _ = apiRequest(t, d, http.MethodDelete, "/api/drafts/"+draft.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete draft = %d", resp.StatusCode)
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	d, _, _ := newDaemon(t)
	startDaemon(t, d)

	resp, _ := apiRequest(t, d, http.MethodPut, "/api/videos", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := authMiddleware("secret", next)

	for _, tc := range []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Basic secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != tc.want {
			t.Fatalf("header %q: status = %d, want %d", tc.header, recorder.Code, tc.want)
		}
	}

	open := authMiddleware("  ", next)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	recorder := httptest.NewRecorder()
	open.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("blank token should disable auth, got %d", recorder.Code)
	}
}
