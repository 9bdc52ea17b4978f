package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/SergeyParamoshkin/articles/internal/article"
	"github.com/SergeyParamoshkin/articles/internal/errresponse"
	"github.com/SergeyParamoshkin/articles/internal/logctx"
	"github.com/SergeyParamoshkin/articles/internal/metrics"
)

const ServiceName = "articles"

// Options tune the router. The zero value is usable.
type Options struct {
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
	// Location for timestamps in responses; nil means local time.
	Location *time.Location
}

// App wires the articles API on top of a store. It is built once at
// startup and shared by all requests.
type App struct {
	sugarLogger *zap.SugaredLogger
	store       article.Store
	metrics     *metrics.Metrics
	articles    *article.Handler
	opts        Options

	// draining is set once shutdown starts so health checks fail first.
	draining atomic.Bool
}

// New returns an App. m may be nil to run without metrics.
func New(log *zap.SugaredLogger, store article.Store, m *metrics.Metrics, opts Options) *App {
	return &App{
		sugarLogger: log,
		store:       store,
		metrics:     m,
		articles:    article.NewHandler(store, log, opts.Location),
		opts:        opts,
	}
}

// Router returns the public API router.
func (a *App) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.Logger)
	r.Use(a.AccessLog)
	r.Use(a.Recoverer)

	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}

	if len(a.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.render(w, r, errresponse.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.render(w, r, errresponse.ErrMethodNotAllowed)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/articles", http.StatusFound)
	})

	a.articles.Routes(r)

	FileServer(r, "/docs", Docs())

	return r
}

// DiagRouter returns the router for the diagnostics listener.
func (a *App) DiagRouter() chi.Router {
	r := chi.NewRouter()

	if a.metrics != nil {
		r.Get("/metrics", a.metrics.ServeHTTP)
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("pong")); err != nil {
			a.sugarLogger.Errorw("write ping response", "error", err)
		}
	})

	r.Get("/healthz", a.Healthz)

	return r
}

// Healthz reports whether the store answers within a second.
func (a *App) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if a.draining.Load() {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, render.M{"status": "draining"})

		return
	}

	if err := a.store.Ping(ctx); err != nil {
		a.sugarLogger.Warnw("health check failed", "error", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, render.M{"status": "unavailable"})

		return
	}

	render.JSON(w, r, render.M{"status": "ok"})
}

// Logger stores a request scoped logger tagged with the request id.
func (a *App) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := a.sugarLogger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logctx.With(r.Context(), l)))
	})
}

// AccessLog writes one line per request once the response is done.
func (a *App) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			logctx.FromOr(r.Context(), a.sugarLogger).Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Recoverer turns a panic into a logged 500 with a JSON body.
func (a *App) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}

			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			logctx.FromOr(r.Context(), a.sugarLogger).Errorw("panic serving request",
				"panic", rvr,
				"stack", string(debug.Stack()),
			)

			if r.Header.Get("Connection") != "Upgrade" {
				a.render(w, r, errresponse.ErrInternal(fmt.Errorf("panic: %v", rvr)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (a *App) render(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		logctx.FromOr(r.Context(), a.sugarLogger).Errorw("render response", "error", err)
	}
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}

//go:embed docs
var embededFiles embed.FS

// Docs serves the embedded OpenAPI description.
func Docs() http.FileSystem {
	fsys, err := fs.Sub(embededFiles, "docs")
	if err != nil {
		panic(err)
	}

	return http.FS(fsys)
}
