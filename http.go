package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb/geojson"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("json encode failed: %v", err)
	}
}

type errResponse struct {
	Error string `json:"error"`
}

// NewRouter 对外HTTP接口：connect服务、地图范围等GET接口与健康检查
func NewRouter(s *WalkshedServer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !s.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "graph": s.Graph().Stats()})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/bounds", func(w http.ResponseWriter, _ *http.Request) {
			out, err := s.getBounds()
			if err != nil {
				writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Get("/boundary", func(w http.ResponseWriter, _ *http.Request) {
			g := s.wait()
			if g == nil {
				writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: errNotReady.Error()})
				return
			}
			writeJSON(w, http.StatusOK, geojson.NewFeature(g.InvertedBoundary()))
		})
		r.Get("/amenities", func(w http.ResponseWriter, _ *http.Request) {
			g := s.wait()
			if g == nil {
				writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: errNotReady.Error()})
				return
			}
			writeJSON(w, http.StatusOK, g.AmenitiesGeoJSON())
		})
	})

	path, handler := NewWalkshedServiceHandler(s)
	r.Handle(path+"*", handler)
	return r
}

// 访问/debug/pprof/进入pprof实时分析页面
func startHTTPDebugger(addr string) {
	r := chi.NewRouter()
	r.Mount("/debug", middleware.Profiler())
	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("pprof server stopped: %v", err)
		}
	}()
}
