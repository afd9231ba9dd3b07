package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"tiebaagent/internal/device"
	"tiebaagent/internal/shared/types"
	"tiebaagent/internal/tieba"
	"tiebaagent/proxypool"
)

type instantSleeper struct{}

func (instantSleeper) Sleep(ctx context.Context, d time.Duration) {}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	dev, err := device.LoadOrCreate(filepath.Join(t.TempDir(), "device.json"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &types.Config{
		NetworkConf: types.NetworkConf{
			MaxPaths:        2,
			AttemptsPerPath: 1,
			TimeoutSeconds:  5,
			CooldownSeconds: 300,
		},
	}
	return &Runner{
		cfg:     cfg,
		chain:   proxypool.New(nil, 10, nil),
		dev:     dev,
		sleeper: instantSleeper{},
	}
}

func testClient(t *testing.T, r *Runner, srv *httptest.Server) *tieba.Client {
	t.Helper()
	client := tieba.New(r.chain, r.dev, r.cfg.NetworkConf, r.sleeper)
	client.Endpoints = tieba.Endpoints{
		TBS:       srv.URL + "/tbs",
		Favorites: srv.URL + "/like",
		SignIn:    srv.URL + "/sign",
		Reply:     srv.URL + "/reply",
		Delete:    srv.URL + "/del",
		SetTop:    srv.URL + "/q",
		ForumName: srv.URL + "/fname",
	}
	return client
}

func TestRunAccountSignsEveryCollectedForum(t *testing.T) {
	var signs atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/tbs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tbs":"token","is_login":1}`))
	})
	mux.HandleFunc("/like", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code":0,"forum_list":{"non-gconforum":[{"id":"1","name":"A"},{"id":"2","name":"B"}],"gconforum":[]},"has_more":"0"}`))
	})
	mux.HandleFunc("/sign", func(w http.ResponseWriter, r *http.Request) {
		signs.Add(1)
		w.Write([]byte(`{"error_code":0}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := testRunner(t)
	result := r.runAccount(context.Background(), testClient(t, r, srv), 0, "tok")

	if len(result.Forums) != 2 {
		t.Fatalf("collected %d forums, want 2", len(result.Forums))
	}
	if result.Signed != 2 || result.Failed != 0 {
		t.Fatalf("signed=%d failed=%d, want 2/0", result.Signed, result.Failed)
	}
	if signs.Load() != 2 {
		t.Fatalf("sign endpoint hit %d times, want 2", signs.Load())
	}
}

func TestRunAccountAbortsBatchOnWindControl(t *testing.T) {
	var signs atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/tbs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tbs":"token"}`))
	})
	mux.HandleFunc("/like", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code":0,"forum_list":{"non-gconforum":[{"id":"1","name":"A"},{"id":"2","name":"B"},{"id":"3","name":"C"}]},"has_more":"0"}`))
	})
	mux.HandleFunc("/sign", func(w http.ResponseWriter, r *http.Request) {
		signs.Add(1)
		w.Write([]byte(`{"error_code":110}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := testRunner(t)
	result := r.runAccount(context.Background(), testClient(t, r, srv), 0, "tok")

	// The first wind-control hit must end the batch: no further sign attempts.
	if signs.Load() != 1 {
		t.Fatalf("sign endpoint hit %d times after wind control, want 1", signs.Load())
	}
	if result.Signed != 0 {
		t.Fatalf("signed = %d, want 0", result.Signed)
	}
}

func TestRunAccountMissingTBSSkipsAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tbs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`broken body`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := testRunner(t)
	result := r.runAccount(context.Background(), testClient(t, r, srv), 0, "tok")

	if len(result.Forums) != 0 || result.Signed != 0 {
		t.Fatalf("account without tbs must be skipped entirely, got %+v", result)
	}
}

func TestModeratorTaskReplyDeleteAndPin(t *testing.T) {
	var deleted, pinned, unpinned atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/fname", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"fid":42}}`))
	})
	mux.HandleFunc("/reply", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_code":0,"data":{"post_id":777}}`))
	})
	mux.HandleFunc("/del", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("post_id") == "777" {
			deleted.Add(1)
		}
		w.Write([]byte(`{"error_code":0}`))
	})
	mux.HandleFunc("/q", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("tn") {
		case "bdTOP":
			pinned.Add(1)
		case "bdUNTOP":
			unpinned.Add(1)
		}
		w.Write([]byte(`<html>ok</html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := testRunner(t)
	r.cfg.ModeratorConf.PostEnable = true
	r.cfg.ModeratorConf.TopEnable = true

	status := r.moderatorTask(context.Background(), testClient(t, r, srv), "tok", "tbs", "golang", "100")

	if !status.Reply || !status.Top {
		t.Fatalf("status = %+v, want reply and top successful", status)
	}
	if deleted.Load() != 1 {
		t.Error("own reply was not deleted")
	}
	if pinned.Load() != 1 || unpinned.Load() != 1 {
		t.Errorf("pin/unpin hits = %d/%d, want 1/1", pinned.Load(), unpinned.Load())
	}
}
