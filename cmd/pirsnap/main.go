package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/PirSnap/internal/config"
	"github.com/cjeanneret/PirSnap/internal/debug"
	"github.com/cjeanneret/PirSnap/internal/hw/camera"
	"github.com/cjeanneret/PirSnap/internal/hw/gpio"
	"github.com/cjeanneret/PirSnap/internal/hw/led"
	"github.com/cjeanneret/PirSnap/internal/hw/pir"
	"github.com/cjeanneret/PirSnap/internal/logic/pipeline"
	"github.com/cjeanneret/PirSnap/internal/notify"
	"github.com/cjeanneret/PirSnap/internal/store"
	"github.com/cjeanneret/PirSnap/internal/web"
)

// statusLED is the indicator as seen by both the pipeline and /status.
type statusLED interface {
	Set(on bool) error
	On() bool
}

// initFailure is a capability that could not start. The device keeps
// running without it.
type initFailure struct {
	component string
	err       error
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Only a broken config stops the device.
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyDebugOverride(cfg, *debugLevel); err != nil {
		log.Fatalf("invalid -debug: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel, cfg.Defaults.LogFile)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	var failures []initFailure

	// Status reporting
	debug.Step(1, "Wiring status reporters")
	var reporters notify.Multi
	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		reporters = append(reporters, broadcaster)
	}
	if cfg.MQTT.Broker != "" {
		pub, err := notify.DialMQTT(notify.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			failures = append(failures, initFailure{"mqtt", err})
		} else {
			defer pub.Close()
			reporters = append(reporters, pub)
		}
	}

	// GPIO
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(2, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		failures = append(failures, initFailure{"gpio", err})
		gpioDriver = nil
	} else {
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
	}

	// Status LED
	debug.Step(3, "Initializing status LED")
	var indicator statusLED = led.Inert{}
	if gpioDriver != nil {
		ind, err := led.New(gpioDriver, cfg.LED.Pin, cfg.LED.ActiveLow)
		if err != nil {
			failures = append(failures, initFailure{"led", err})
		} else {
			indicator = ind
			defer func() {
				if err := ind.Set(false); err != nil {
					log.Printf("turning LED off failed: %v", err)
				}
			}()
		}
	}
	debug.PrintStruct("LED config", cfg.LED)

	// PIR sensor
	debug.Step(4, "Initializing PIR sensor")
	var sensor *pir.Sensor
	if gpioDriver != nil {
		sensor, err = pir.New(gpioDriver, pir.Config{
			Pin:          cfg.PIR.Pin,
			Debounce:     cfg.Debounce(),
			PollInterval: cfg.PollInterval(),
			PullDown:     cfg.PIR.PullDown,
		})
		if err != nil {
			failures = append(failures, initFailure{"pir", err})
			sensor = nil
		}
	}
	debug.PrintStruct("PIR config", cfg.PIR)

	// Camera
	debug.Step(5, "Initializing camera")
	cam := newCameraFromConfig(cfg, cameraFailureReporter(reporters))
	if err := cam.Initialize(ctx); err != nil {
		failures = append(failures, initFailure{"camera", err})
		cam = camera.Inert{}
	}
	debug.Value("Camera type", cfg.Camera.Type)

	// Object store
	debug.Step(6, "Initializing object store")
	st, err := newStoreFromConfig(ctx, cfg)
	if err != nil {
		failures = append(failures, initFailure{"store", err})
		st = store.Unavailable{Reason: err}
	}
	debug.Value("Store type", cfg.Store.Type)
	debug.Value("Bucket", cfg.Store.Bucket)

	p := pipeline.New(pipelineConfig(cfg), cam, st, indicator, reporters)
	for _, f := range failures {
		p.ReportInitFailure(f.component, f.err)
	}
	p.Start(ctx)

	if sensor != nil {
		sensor.Subscribe(p.OnMotion)
		go func() {
			if err := sensor.Run(ctx); err != nil && ctx.Err() == nil {
				debug.Error(fmt.Errorf("pir: %w", err))
			}
		}()
	}

	if broadcaster != nil {
		srv, err := web.NewServer(fmt.Sprintf(":%d", webPort.port()), broadcaster, p, st, indicator)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			debug.Error(fmt.Errorf("web server: %w", err))
			cancel()
		}
	} else {
		<-ctx.Done()
	}

	debug.Info("Shutting down, waiting for the current cycle")
	p.Wait()
}

// applyDebugOverride applies -debug when it was given (>= 0).
func applyDebugOverride(cfg *config.Config, level int) error {
	if level < 0 {
		return nil
	}
	if level > 4 {
		return fmt.Errorf("debug level must be between 0 and 4, got %d", level)
	}
	cfg.Defaults.DebugLevel = level
	return nil
}

// pipelineConfig maps the loaded config onto the pipeline parameters.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		NamePrefix:     cfg.Camera.NamePrefix,
		SaveDir:        cfg.Camera.SaveDir,
		CaptureTimeout: cfg.CaptureTimeout(),
		UploadTimeout:  cfg.UploadTimeout(),
	}
}

// cameraFailureReporter surfaces what the camera tool printed after its
// capture was abandoned. Failures the pipeline waits for are reported by
// the pipeline itself.
func cameraFailureReporter(r notify.Reporter) camera.FailureFunc {
	return func(msg string) {
		debug.Warn("camera: %s", msg)
		r.Broadcast("warn", "Camera: "+msg)
	}
}

// newCameraFromConfig selects a camera implementation based on configuration.
// Load has already rejected unknown types.
func newCameraFromConfig(cfg *config.Config, onFailure camera.FailureFunc) camera.Camera {
	switch cfg.Camera.Type {
	case "mock":
		return camera.NewMock(cfg.Camera.Width, cfg.Camera.Height)
	default:
		return camera.NewCommand(camera.CommandConfig{
			Path:      cfg.Camera.Command,
			Args:      cfg.Camera.Args,
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			OnFailure: onFailure,
		})
	}
}

// newStoreFromConfig builds and initializes the object store.
func newStoreFromConfig(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return store.NewMemory(), nil
	case "minio":
		m, err := store.NewMinio(store.MinioConfig{
			Endpoint:      cfg.Store.Endpoint,
			Region:        cfg.Store.Region,
			Bucket:        cfg.Store.Bucket,
			AccessKey:     cfg.Store.AccessKey,
			SecretKey:     cfg.Store.SecretKey,
			UseSSL:        cfg.Store.UseSSL,
			PublicBaseURL: cfg.Store.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := m.Initialize(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
