package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/PirSnap/internal/config"
	"github.com/cjeanneret/PirSnap/internal/hw/camera"
	"github.com/cjeanneret/PirSnap/internal/hw/led"
	"github.com/cjeanneret/PirSnap/internal/notify"
	"github.com/cjeanneret/PirSnap/internal/store"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- applyDebugOverride ----------

func TestApplyDebugOverride(t *testing.T) {
	cases := []struct {
		name    string
		level   int
		want    int
		wantErr bool
	}{
		{"not_given", -1, 1, false},
		{"off", 0, 0, false},
		{"trace", 4, 4, false},
		{"too_high", 5, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Defaults: config.DefaultsConfig{DebugLevel: 1}}
			err := applyDebugOverride(cfg, tc.level)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if cfg.Defaults.DebugLevel != tc.want {
				t.Errorf("DebugLevel = %d, want %d", cfg.Defaults.DebugLevel, tc.want)
			}
		})
	}
}

// ---------- wiring ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Camera: config.CameraConfig{
			Type:       "mock",
			Command:    "rpicam-still",
			Width:      320,
			Height:     240,
			NamePrefix: "RaspPiSecurityPic",
			SaveDir:    "/tmp/shots",
		},
		Store:    config.StoreConfig{Type: "memory"},
		Pipeline: config.PipelineConfig{CaptureTimeoutMs: 15000, UploadTimeoutMs: -1},
	}
}

func TestPipelineConfig(t *testing.T) {
	pc := pipelineConfig(newTestConfig())
	if pc.NamePrefix != "RaspPiSecurityPic" {
		t.Errorf("NamePrefix = %q", pc.NamePrefix)
	}
	if pc.SaveDir != "/tmp/shots" {
		t.Errorf("SaveDir = %q", pc.SaveDir)
	}
	if pc.CaptureTimeout != 15*time.Second {
		t.Errorf("CaptureTimeout = %v, want 15s", pc.CaptureTimeout)
	}
	if pc.UploadTimeout != 0 {
		t.Errorf("UploadTimeout = %v, want 0 (unbounded)", pc.UploadTimeout)
	}
}

func TestNewCameraFromConfig_Mock(t *testing.T) {
	cam := newCameraFromConfig(newTestConfig(), nil)
	if _, ok := cam.(*camera.Mock); !ok {
		t.Fatalf("camera = %T, want *camera.Mock", cam)
	}
	if err := cam.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	data, err := cam.CaptureStill(context.Background())
	if err != nil || len(data) == 0 {
		t.Errorf("CaptureStill() = %d bytes, %v", len(data), err)
	}
}

func TestNewCameraFromConfig_CommandMissingBinary(t *testing.T) {
	cfg := newTestConfig()
	cfg.Camera.Type = "command"
	cfg.Camera.Command = "pirsnap-no-such-binary"

	cam := newCameraFromConfig(cfg, nil)
	if _, ok := cam.(*camera.Command); !ok {
		t.Fatalf("camera = %T, want *camera.Command", cam)
	}
	if err := cam.Initialize(context.Background()); err == nil {
		t.Error("expected Initialize to fail for a missing binary")
	}
}

func TestNewStoreFromConfig_Memory(t *testing.T) {
	st, err := newStoreFromConfig(context.Background(), newTestConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(*store.Memory); !ok {
		t.Errorf("store = %T, want *store.Memory", st)
	}
}

func TestNewStoreFromConfig_MinioWithoutBucket(t *testing.T) {
	cfg := newTestConfig()
	cfg.Store = config.StoreConfig{Type: "minio", Endpoint: "localhost:9000"}
	if _, err := newStoreFromConfig(context.Background(), cfg); err == nil {
		t.Error("expected error for missing bucket")
	}
}

func TestNewStoreFromConfig_MinioUnreachable(t *testing.T) {
	cfg := newTestConfig()
	cfg.Store = config.StoreConfig{Type: "minio", Endpoint: "127.0.0.1:1", Bucket: "images"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := newStoreFromConfig(ctx, cfg)
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
	// main falls back to a store that fails every call
	fallback := store.Unavailable{Reason: err}
	if err := fallback.Upload(ctx, "a.jpg", nil); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("fallback Upload() = %v", err)
	}
}

func TestNewStoreFromConfig_Unknown(t *testing.T) {
	cfg := newTestConfig()
	cfg.Store.Type = "ftp"
	if _, err := newStoreFromConfig(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown store type")
	}
}

func TestCameraFailureReporter(t *testing.T) {
	var got []string
	onFailure := cameraFailureReporter(notify.Func(func(level, msg string) {
		got = append(got, level+":"+msg)
	}))

	onFailure("sensor timed out")

	if len(got) != 1 || got[0] != "warn:Camera: sensor timed out" {
		t.Errorf("reported = %v", got)
	}
}

func TestStatusLEDImplementations(t *testing.T) {
	var _ statusLED = led.Inert{}
	var _ statusLED = (*led.Indicator)(nil)
}
