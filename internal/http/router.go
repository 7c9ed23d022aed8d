// Package httpapi is the server-rendered HTML console of the dashboard.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/service"
	"github.com/sieffosman/hotel-dashboard/internal/views"
)

// NewRouter wires the console routes. gatherer backs /metrics; nil
// falls back to the default registry.
func NewRouter(svc *service.RoomService, gatherer prometheus.Gatherer, logger *zap.Logger) (http.Handler, error) {
	h, err := NewRoomHandler(svc, logger)
	if err != nil {
		return nil, err
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()
	r.Use(requestID, accessLog(logger), recovery(logger))

	r.HandleFunc("/", redirectTo(views.RouteList)).Methods(http.MethodGet)
	r.HandleFunc("/health", health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/rooms", h.List).Methods(http.MethodGet)
	r.HandleFunc("/rooms/export.xlsx", h.Export).Methods(http.MethodGet)
	r.HandleFunc("/rooms/new", h.NewForm).Methods(http.MethodGet)
	r.HandleFunc("/rooms/new", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id:[0-9]+}", h.Detail).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id:[0-9]+}", h.Update).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id:[0-9]+}/delete", h.Delete).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id:[0-9]+}/pdf", h.PDF).Methods(http.MethodGet)

	// unknown paths land on the list
	r.NotFoundHandler = redirectTo(views.RouteList)
	return r, nil
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, target, http.StatusSeeOther)
	}
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
