// internal/server/server.go
//
// View transport and native request surface.
//
// Routes
// ------
//
//	GET  /             – operator scene; renders popups pushed over /ws
//	GET  /ws           – websocket view client (see hub.go)
//	POST /api/popup    – request a popup; ?wait=10s blocks for the answer
//	GET  /api/types    – value types announced by extensions
//	GET  /api/journal  – newest journal rows (when a journal is configured)
//	GET  /healthz      – liveness
//	GET  /metrics      – Prometheus
//
// Every /api/popup call gets an OpenTelemetry span carrying the prompt kind
// and id.  The tracer comes from the global provider, a no-op unless main
// installs one.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yanizio/hmi/extensions/hmi"
	"github.com/yanizio/hmi/internal/journal"
	"github.com/yanizio/hmi/internal/metatype"
	"github.com/yanizio/hmi/internal/middleware"
	"github.com/yanizio/hmi/internal/view"
)

const tracerName = "github.com/yanizio/hmi/internal/server"

// maxWait caps ?wait so a blocked request finishes inside WriteTimeout.
const maxWait = WriteTimeout - 5*time.Second

// Options wires the server to the running application.
type Options struct {
	Bridge         *hmi.PopupBridge   // required
	Engine         *view.Engine       // required, must already hold Bridge
	Types          *metatype.Registry // nil means metatype.Default()
	Journal        *journal.Store     // optional
	AllowedOrigins []string           // empty means same-origin only
	ForceHTTPS     bool
	Log            *zap.SugaredLogger // nil means zap.S()
}

// Server serves the view transport.
type Server struct {
	opts     Options
	log      *zap.SugaredLogger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	hub      *hub
	router   chi.Router
}

// New builds the router.  It Connects the websocket hub to the bridge.
func New(o Options) *Server {
	if o.Types == nil {
		o.Types = metatype.Default()
	}
	if o.Log == nil {
		o.Log = zap.S()
	}
	s := &Server{
		opts:   o,
		log:    o.Log,
		tracer: otel.Tracer(tracerName),
		hub:    newHub(o.Bridge, o.Engine.Loop(), o.Log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(o.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(o.AllowedOrigins, r.Header.Get("Origin"))
		}
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	if s.opts.ForceHTTPS {
		return middleware.ForceHTTPS(s.router)
	}
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLog(s.log))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Security)
		r.Get("/", s.handleScene)
		r.Route("/api", func(api chi.Router) {
			api.Post("/popup", s.handlePopup)
			api.Get("/types", s.handleTypes)
			api.Get("/journal", s.handleJournal)
		})
	})
	return r
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Infow("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendQueue)}
	s.hub.add(c)
	s.log.Infow("view client connected", "remote", r.RemoteAddr)

	go s.hub.writePump(c)
	s.hub.readPump(c)
	s.log.Infow("view client disconnected", "remote", r.RemoteAddr)
}

type popupReply struct {
	ID     uint64     `json:"id"`
	Answer hmi.Button `json:"answer,omitempty"`
}

func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "popup.request")
	defer span.End()

	var p hmi.Prompt
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		s.fail(w, span, http.StatusBadRequest, err)
		return
	}
	p.ID = 0 // assigned by the bridge

	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		s.fail(w, span, http.StatusBadRequest, err)
		return
	}

	if err := s.opts.Bridge.Request(&p); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, hmi.ErrInvalidPrompt):
			status = http.StatusBadRequest
		case errors.Is(err, hmi.ErrBridgeClosed):
			status = http.StatusServiceUnavailable
		}
		s.fail(w, span, status, err)
		return
	}
	span.SetAttributes(
		attribute.String("popup.kind", string(p.Kind)),
		attribute.Int64("popup.id", int64(p.ID)),
	)

	if wait == 0 {
		writeJSON(w, http.StatusAccepted, popupReply{ID: p.ID})
		return
	}

	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	answer, err := p.Wait(wctx)
	if err != nil && p.Answered() {
		// Answered as the wait expired; Wait returns at once now.
		answer, err = p.Wait(context.Background())
	}
	if err != nil {
		span.AddEvent("popup.unanswered")
		writeJSON(w, http.StatusAccepted, popupReply{ID: p.ID})
		return
	}
	span.SetAttributes(attribute.String("popup.answer", string(answer)))
	writeJSON(w, http.StatusOK, popupReply{ID: p.ID, Answer: answer})
}

type typeInfo struct {
	Name   string `json:"name"`
	GoType string `json:"goType"`
}

func (s *Server) handleTypes(w http.ResponseWriter, _ *http.Request) {
	entries := s.opts.Types.Entries()
	out := make([]typeInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, typeInfo{Name: e.Name, GoType: e.Type.PkgPath() + "." + e.Type.Name()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1..500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rows, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.log.Errorw("journal read failed", "err", err)
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := sceneTpl.Execute(w, map[string]any{"Title": "HMI"}); err != nil {
		s.log.Errorw("scene render failed", "err", err)
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func (s *Server) fail(w http.ResponseWriter, span trace.Span, status int, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.Infow("popup request rejected", "status", status, "err", err)
	http.Error(w, err.Error(), status)
}

func parseWait(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, errors.New("wait must be a non-negative duration")
	}
	return min(d, maxWait), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var sceneTpl = template.Must(template.New("scene").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
  #popups { position: fixed; top: 1em; right: 1em; width: 22em; font-family: sans-serif; }
  .popup { border: 1px solid #888; border-radius: 4px; padding: .75em; margin-bottom: .5em; background: #fff; }
  .warning { border-color: #d90; } .critical { border-color: #c00; } .question { border-color: #06c; }
  .popup button { margin-right: .25em; }
</style>
</head>
<body>
<div id="popups"></div>
<script>
(function () {
  var box = document.getElementById("popups");
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function (ev) {
    var f = JSON.parse(ev.data);
    if (f.type !== "popup") { return; }
    var p = f.prompt, el = document.createElement("div");
    el.className = "popup " + p.kind;
    var t = document.createElement("p");
    t.textContent = p.text;
    el.appendChild(t);
    if (p.informativeText) {
      var i = document.createElement("small");
      i.textContent = p.informativeText;
      el.appendChild(i);
    }
    (p.buttons || []).forEach(function (b) {
      var btn = document.createElement("button");
      btn.textContent = b;
      btn.onclick = function () {
        ws.send(JSON.stringify({ type: "response", id: p.id, button: b }));
        box.removeChild(el);
      };
      el.appendChild(btn);
    });
    box.appendChild(el);
  };
})();
</script>
</body>
</html>`))
