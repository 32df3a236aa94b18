// Package http implements the REST gateway of the contract services.
//
// Every request is tagged with an identifier, taken from the X-Request-Id
// header or generated, and logged once it has been served. The Prometheus
// collectors of the module are exposed on the metrics path.
package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/indemnify/cman"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// MetricsPath is the path of the Prometheus handler.
const MetricsPath = "/metrics"

// RequestIDHeader is the header carrying the identifier of a request.
const RequestIDHeader = "X-Request-Id"

const shutdownTimeout = 10 * time.Second

type key int

const requestIDKey key = 0

var promRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cman_gateway_request_duration_seconds",
	Help:    "duration of the requests served by the gateway",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "code"})

func init() {
	cman.PromCollectors = append(cman.PromCollectors, promRequests)
}

// Server is the HTTP gateway.
type Server struct {
	sync.Mutex

	mux      *http.ServeMux
	server   *http.Server
	logger   zerolog.Logger
	addr     string
	listener net.Listener
	done     chan struct{}
}

// NewServer returns a gateway listening on the address once started. The
// handlers of the services are registered on it.
func NewServer(addr string, lc Lifecycle, inv Invoker) *Server {
	logger := cman.Logger.With().Str("role", "gateway").Logger()

	mux := http.NewServeMux()

	h := handlers{lifecycle: lc, invoker: inv}
	h.register(mux)

	mux.Handle("GET "+MetricsPath, metricsHandler(logger))

	return &Server{
		mux: mux,
		server: &http.Server{
			Handler:           withRequestID(logging(logger)(mux)),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		addr:   addr,
	}
}

// Listen binds the address and serves the requests in the background.
func (s *Server) Listen() error {
	s.Lock()
	defer s.Unlock()

	if s.listener != nil {
		return xerrors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return xerrors.Errorf("failed to listen on '%s': %v", s.addr, err)
	}

	s.listener = ln
	s.done = make(chan struct{})

	s.logger.Info().Stringer("addr", ln.Addr()).Msg("gateway is ready to handle requests")

	go func() {
		defer close(s.done)

		err := s.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Err(err).Msg("gateway closed unexpectedly")
		}
	}()

	return nil
}

// GetAddr returns the address the server listens on, or nil if it is not
// running.
func (s *Server) GetAddr() net.Addr {
	s.Lock()
	defer s.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.Lock()
	defer s.Unlock()

	if s.listener == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		return xerrors.Errorf("failed to shutdown: %v", err)
	}

	<-s.done
	s.listener = nil

	s.logger.Info().Msg("gateway stopped")

	return nil
}

// metricsHandler serves the collectors of the module with a registry of its
// own, so that the gateway can be started more than once in a process.
func metricsHandler(logger zerolog.Logger) http.Handler {
	registry := prometheus.NewRegistry()

	for _, c := range cman.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to register collector")
		}
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder keeps the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()

			defer func() {
				elapsed := time.Since(start)

				requestID, ok := r.Context().Value(requestIDKey).(string)
				if !ok {
					requestID = "unknown"
				}

				promRequests.WithLabelValues(r.Method, strconv.Itoa(rec.code)).
					Observe(elapsed.Seconds())

				logger.Info().Str("requestID", requestID).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Int("code", rec.code).
					Dur("elapsed", elapsed).
					Str("remoteAddr", r.RemoteAddr).
					Str("agent", r.UserAgent()).Msg("")
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = xid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
