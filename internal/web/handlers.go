package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/cjeanneret/PirSnap/internal/debug"
	"github.com/cjeanneret/PirSnap/internal/hw/pir"
	"github.com/cjeanneret/PirSnap/internal/logic/pipeline"
	"github.com/cjeanneret/PirSnap/internal/store"
)

// listTimeout bounds a gallery listing against the remote store.
const listTimeout = 10 * time.Second

// Controller is the part of the pipeline the web surface drives.
type Controller interface {
	Trigger(ev pir.MotionEvent) bool
	State() pipeline.State
	Busy() bool
	Preview() (pipeline.Image, bool)
}

// LEDReader reports what the status LED is actually showing.
type LEDReader interface {
	On() bool
}

// Status is the JSON body of GET /status.
type Status struct {
	State     string       `json:"state"`
	Busy      bool         `json:"busy"`
	Indicator bool         `json:"indicator"`
	Last      *StatusEvent `json:"last,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Pipeline    Controller
	Store       store.Lister
	LED         LEDReader // if nil, the indicator is derived from the state
	GalleryN    int
	staticFS    fs.FS
	now         func() time.Time
}

// NewHandlers creates handlers with the given dependencies.
// If ctrl is nil, POST /trigger returns 503; if lister is nil, GET /images does.
func NewHandlers(broadcaster *StatusBroadcaster, ctrl Controller, lister store.Lister, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Pipeline:    ctrl,
		Store:       lister,
		GalleryN:    store.GalleryN,
		staticFS:    staticFS,
		now:         time.Now,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatus returns the pipeline state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.Pipeline == nil {
		http.Error(w, "pipeline not configured", http.StatusServiceUnavailable)
		return
	}
	state := h.Pipeline.State()
	st := Status{
		State:     state.String(),
		Busy:      h.Pipeline.Busy(),
		Indicator: pipeline.IndicatorFor(state),
	}
	if h.LED != nil {
		st.Indicator = h.LED.On()
	}
	if h.Broadcaster != nil {
		if last, ok := h.Broadcaster.Last(); ok {
			st.Last = &last
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleTrigger handles POST /trigger, a manual motion event.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Pipeline == nil {
		http.Error(w, "pipeline not configured", http.StatusServiceUnavailable)
		return
	}

	if !h.Pipeline.Trigger(pir.MotionEvent{Edge: pir.Rising, Time: h.now()}) {
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	}
	debug.Live("Manual trigger from %s", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleImages returns the most recent stored images, newest first.
// ?n= overrides the gallery size.
func (h *Handlers) HandleImages(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		http.Error(w, "store not configured", http.StatusServiceUnavailable)
		return
	}
	n := h.GalleryN
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 || v > 100 {
			http.Error(w, "n must be between 1 and 100", http.StatusBadRequest)
			return
		}
		n = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()
	objs, err := store.ListRecent(ctx, h.Store, n)
	if err != nil {
		debug.Error(err)
		http.Error(w, "list images: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, objs)
}

// HandlePreview serves the last captured image.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if h.Pipeline == nil {
		http.Error(w, "pipeline not configured", http.StatusServiceUnavailable)
		return
	}
	img, ok := h.Pipeline.Preview()
	if !ok {
		http.Error(w, "no preview", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Image-Name", img.Name)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Write(img.Data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	for _, evt := range h.Broadcaster.Recent() {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		w.Write([]byte("data: " + string(data) + "\n\n"))
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
