package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/matchmate/matchmate-go/internal/apiclient"
	"github.com/matchmate/matchmate-go/internal/config"
	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/tokenstore"
)

func TestRun_UnknownCommand(t *testing.T) {
	c := apiclient.New(apiclient.Options{BaseURL: "http://127.0.0.1:0"})

	for _, args := range [][]string{nil, {"dance"}, {"shortlist", "purge"}, {"delete-photo"}} {
		if _, err := run(context.Background(), c, args, io.Discard); !errors.Is(err, errUsage) {
			t.Errorf("%v: expected errUsage, got %v", args, err)
		}
	}
}

func TestRun_SwipePrintsEnvelope(t *testing.T) {
	var got model.SwipeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/swipes" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.OK(model.SwipeResponse{Matched: true}, ""))
	}))
	defer srv.Close()

	c := apiclient.New(apiclient.Options{
		BaseURL: srv.URL + "/api/v1",
		Store:   tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: "tok", RefreshToken: "r"}),
	})

	var out bytes.Buffer
	ok, err := run(context.Background(), c, []string{"swipe", "-id", "9", "-dir", "pass"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Errorf("expected success, output: %s", out.String())
	}
	if got.TargetID != 9 || got.Direction != model.SwipePass {
		t.Errorf("unexpected request %+v", got)
	}

	var env model.APIResponse[model.SwipeResponse]
	if err := json.Unmarshal(out.Bytes(), &env); err != nil {
		t.Fatalf("output is not an envelope: %v", err)
	}
	if !env.Data.Matched {
		t.Error("expected matched=true in output")
	}
}

func TestParseProfileUpdate_OnlyGivenFields(t *testing.T) {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	req, err := parseProfileUpdate(fs, []string{"-city", "Pune", "-bio", "", "-interests", "music, travel,,"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.City == nil || *req.City != "Pune" {
		t.Errorf("expected city Pune, got %v", req.City)
	}
	if req.Bio == nil || *req.Bio != "" {
		t.Errorf("expected explicit empty bio, got %v", req.Bio)
	}
	if req.DisplayName != nil || req.Gender != nil || req.Languages != nil {
		t.Errorf("unexpected fields set: %+v", req)
	}
	if req.Interests == nil || len(*req.Interests) != 2 || (*req.Interests)[1] != "travel" {
		t.Errorf("unexpected interests %v", req.Interests)
	}
}

func TestOpenStore(t *testing.T) {
	s, closeFn, err := openStore(config.ClientConfig{TokenStore: "file", TokenFile: t.TempDir() + "/creds.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*tokenstore.FileStore); !ok {
		t.Errorf("expected *FileStore, got %T", s)
	}

	if _, _, err := openStore(config.ClientConfig{TokenStore: "etcd"}); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, closeFn, err := openStore(config.ClientConfig{
		TokenStore: "redis",
		Session:    "cli",
		Redis:      config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	if err := s.Save(context.Background(), tokenstore.Credentials{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mr.HGet("matchmate:credentials:cli", "refresh_token"); got != "r" {
		t.Errorf("expected refresh token in redis, got %q", got)
	}
}

func TestRealMain_ExitCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/matches" {
			json.NewEncoder(w).Encode(model.OK([]model.Match{}, ""))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(model.Fail[any]("not found"))
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "base_url: " + srv.URL + "/api/v1\ntoken_store: memory\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"success", []string{"-config", cfgPath, "matches"}, 0},
		{"failure envelope", []string{"-config", cfgPath, "me"}, 1},
		{"unknown command", []string{"-config", cfgPath, "dance"}, 2},
		{"bad flag", []string{"-nope"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := realMain(tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("expected exit code %d, got %d (stderr %q)", tt.want, got, stderr.String())
			}
		})
	}
}
