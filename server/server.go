// Package server exposes the upload relay, usage gate, share links and the
// viewer assets over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seqsense/splatview/config"
	"github.com/seqsense/splatview/frame"
	"github.com/seqsense/splatview/relay"
	"github.com/seqsense/splatview/share"
	"github.com/seqsense/splatview/usage"
)

// Reconstructor turns an uploaded photo into a cloud URL.
type Reconstructor interface {
	Reconstruct(ctx context.Context, up relay.Upload) (relay.Result, error)
}

type Options struct {
	Server  config.ServerConfig
	Viewer  frame.Options
	Share   share.Codec
	Counter usage.Counter
	Relay   Reconstructor
	// HTTPClient fetches clouds for inspection. nil uses http.DefaultClient.
	HTTPClient *http.Client
	Metrics    *Metrics
	Logger     *zap.Logger
}

type Server struct {
	opts    Options
	codec   *share.Codec
	limiter *uploadLimiter
	metrics *Metrics
	logger  *zap.Logger
	handler http.Handler
}

func New(opts Options) (*Server, error) {
	if opts.Counter == nil {
		return nil, errors.New("server: usage counter is required")
	}
	if opts.Relay == nil {
		return nil, errors.New("server: reconstructor is required")
	}
	if opts.Server.MaxUploadBytes <= 0 {
		opts.Server.MaxUploadBytes = config.Default().Server.MaxUploadBytes
	}
	if opts.Server.InspectMaxBytes <= 0 {
		opts.Server.InspectMaxBytes = config.Default().Server.InspectMaxBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	codec := opts.Share
	s := &Server{
		opts:    opts,
		codec:   &codec,
		metrics: opts.Metrics,
		logger:  opts.Logger.With(zap.String("component", "server")),
	}
	if opts.Server.UploadRate > 0 {
		s.limiter = newUploadLimiter(opts.Server.UploadRate, opts.Server.UploadBurst)
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	var upload http.Handler = http.HandlerFunc(s.handleCreateSplat)
	if s.limiter != nil {
		upload = s.limiter.middleware(s.metrics)(upload)
	}
	mux.Handle("POST /api/create-splat", upload)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("POST /api/usage", s.handleUsageAcquire)
	mux.HandleFunc("GET /api/share", s.handleShareEncode)
	mux.HandleFunc("GET /api/share/{token}", s.handleShareDecode)
	mux.HandleFunc("GET /api/inspect", s.handleInspect)
	mux.HandleFunc("GET /view/{token}", s.handleView)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	if s.opts.Server.StaticDir != "" {
		mux.Handle("GET /", &noCache{Handler: http.FileServer(http.Dir(s.opts.Server.StaticDir))})
	}

	return Chain(mux,
		RequestID(),
		Recovery(s.logger),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metrics),
		CORS(s.opts.Server.AllowedOrigins),
	)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.opts.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.Server.WriteTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if s.limiter != nil {
		g.Go(func() error {
			s.limiter.run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		timeout := s.opts.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

type noCache struct {
	http.Handler
}

func (h *noCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	h.Handler.ServeHTTP(w, r)
}
