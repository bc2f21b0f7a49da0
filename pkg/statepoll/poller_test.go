package statepoll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robokit/go-teleop/pkg/pose"
)

func TestPoller_Poll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/state" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"head":{"x":0.01,"pitch":0.1},"antennas":[0.2,-0.2],"body_yaw":0.3}`))
	}))
	defer srv.Close()

	p := New(srv.URL, time.Second)

	if _, ok := p.Last(); ok {
		t.Fatal("Last reported a pose before any poll")
	}

	got, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	want := pose.Pose{
		Head:     pose.Head{X: 0.01, Pitch: 0.1},
		Antennas: [2]float64{0.2, -0.2},
		BodyYaw:  0.3,
	}
	if got != want {
		t.Errorf("pose: got %+v, want %+v", got, want)
	}

	last, ok := p.Last()
	if !ok || last != want {
		t.Errorf("Last: got %+v ok=%v", last, ok)
	}
}

func TestPoller_PollError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "daemon busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(srv.URL, time.Second)
	if _, err := p.Poll(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
	if _, ok := p.Last(); ok {
		t.Error("failed poll must not seed Last")
	}
}
