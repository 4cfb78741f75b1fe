package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/iniwex5/simprofile/pkg/sim"
)

func TestPages(t *testing.T) {
	tests := []struct {
		count int
		want  []int
	}{
		{0, nil},
		{1, []int{1}},
		{500, []int{500}},
		{1000, []int{500, 500}},
		{1201, []int{500, 500, 201}},
	}
	for _, tt := range tests {
		if got := Pages(tt.count); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Pages(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

type fakeAPI struct {
	mu       sync.Mutex
	counts   []int
	failFrom int // 从第几次请求开始返回 500，0 表示不失败
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "secret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.counts = append(f.counts, req.Count)
	call := len(f.counts)
	f.mu.Unlock()

	if f.failFrom > 0 && call >= f.failFrom {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	resp := Response{Count: req.Count}
	for i := 0; i < req.Count; i++ {
		resp.Profiles = append(resp.Profiles, sim.EncryptedProfile{ICCID: fmt.Sprintf("%d-%d", call, i), Profile: "AA=="})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func TestFetchPaginates(t *testing.T) {
	fake := &fakeAPI{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", Endpoint: srv.URL})
	got, err := c.Fetch(context.Background(), 1002)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(got) != 1002 {
		t.Errorf("got %d profiles, want 1002", len(got))
	}
	if !reflect.DeepEqual(fake.counts, []int{500, 500, 2}) {
		t.Errorf("请求数量 %v", fake.counts)
	}
}

func TestFetchPartial(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{failFrom: 2})
	defer srv.Close()

	got, err := NewClient(Config{APIKey: "secret", Endpoint: srv.URL}).Fetch(context.Background(), 600)
	if len(got) != 500 {
		t.Errorf("got %d profiles, want 500", len(got))
	}
	if !errors.Is(err, ErrPartial) || !errors.Is(err, ErrStatus) {
		t.Errorf("got %v", err)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{})
	defer srv.Close()

	got, err := NewClient(Config{APIKey: "wrong", Endpoint: srv.URL}).Fetch(context.Background(), 3)
	if got != nil || !errors.Is(err, ErrStatus) || errors.Is(err, ErrPartial) {
		t.Errorf("got %v, %v", got, err)
	}

	if _, err := NewClient(Config{}).Fetch(context.Background(), 0); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("got %v, want ErrInvalidCount", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(Config{APIKey: "secret", Endpoint: srv.URL}).Fetch(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
