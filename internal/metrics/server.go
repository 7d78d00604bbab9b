package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the package's promauto-registered series on /metrics and
// a trivial /health probe, the way the teacher's own MetricsServer does —
// minus its manual MustRegister dance, since promauto already registers
// each series to the default registry at package init.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer builds a metrics Server listening on addr (host:port).
func NewServer(addr string, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		log:        log,
	}
}

// Start runs the metrics HTTP server in the background.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server error")
		}
	}()
}

// Stop closes the metrics HTTP server immediately.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}
