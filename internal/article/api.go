package article

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/SergeyParamoshkin/articles/internal/articlerequest"
	"github.com/SergeyParamoshkin/articles/internal/articleresponse"
	"github.com/SergeyParamoshkin/articles/internal/errresponse"
	"github.com/SergeyParamoshkin/articles/internal/logctx"
	"github.com/SergeyParamoshkin/articles/internal/model"
)

// Handler serves the articles resource on top of a Store.
type Handler struct {
	store Store
	log   *zap.SugaredLogger
	loc   *time.Location
}

// NewHandler returns a Handler that formats timestamps in loc. A nil loc
// means local time.
func NewHandler(store Store, log *zap.SugaredLogger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}

	return &Handler{store: store, log: log, loc: loc}
}

// Routes registers the articles resource under /api/articles.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/articles", func(r chi.Router) {
		r.Get("/", h.List)    // GET /api/articles
		r.Post("/", h.Create) // POST /api/articles

		r.Route("/{articleID:[0-9]+}", func(r chi.Router) {
			r.With(h.ArticleCtx).Get("/", h.Get)       // GET /api/articles/123
			r.With(h.ArticleCtx).Delete("/", h.Delete) // DELETE /api/articles/123
			// Updates validate before looking the article up.
			r.Put("/", h.Replace) // PUT /api/articles/123
			r.Patch("/", h.Patch) // PATCH /api/articles/123
		})
	})
}

// List returns every article in id order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	articles, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)

		return
	}

	h.respond(w, r, articleresponse.NewArticleListResponse(articles).In(h.loc))
}

// Get returns the Article loaded by ArticleCtx.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, articleresponse.NewArticleResponse(articleFrom(r.Context())).In(h.loc))
}

// Create persists the posted Article and returns it back to the client.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	patch, err := articlerequest.Decode(r, articlerequest.ModeStrict)
	if err != nil {
		h.fail(w, r, err)

		return
	}

	article, err := h.store.Create(r.Context(), patch.Author.Value, patch.Content.Value)
	if err != nil {
		h.fail(w, r, err)

		return
	}

	h.logger(r).Infow("article created", "article_id", article.ID)
	h.respond(w, r, articleresponse.NewArticleResponse(article).In(h.loc))
}

// Replace overwrites both fields of an existing Article.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, articlerequest.ModeStrict)
}

// Patch overwrites the supplied fields of an existing Article.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, articlerequest.ModePartial)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, mode articlerequest.Mode) {
	patch, err := articlerequest.Decode(r, mode)
	if err != nil {
		h.fail(w, r, err)

		return
	}

	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	article, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)

		return
	}

	h.logger(r).Infow("article updated", "article_id", article.ID)
	h.respond(w, r, articleresponse.NewArticleResponse(article).In(h.loc))
}

// Delete removes the Article loaded by ArticleCtx.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	article := articleFrom(r.Context())

	if err := h.store.Delete(r.Context(), article.ID); err != nil {
		h.fail(w, r, err)

		return
	}

	h.logger(r).Infow("article deleted", "article_id", article.ID)
	h.respond(w, r, articleresponse.OK)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		h.logger(r).Errorw("render response", "error", err)

		if err := render.Render(w, r, errresponse.ErrRender(err)); err != nil {
			h.logger(r).Errorw("render error response", "error", err)
		}
	}
}

// fail renders err at the request boundary. Only unexpected errors are
// logged as errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError

	switch {
	case model.IsNotFound(err):
		h.logger(r).Debugw("article not found", "error", err)
	case errors.As(err, &verr):
		h.logger(r).Debugw("invalid request", "error", err)
	default:
		h.logger(r).Errorw("request failed", "error", err)
	}

	if err := render.Render(w, r, errresponse.From(err)); err != nil {
		h.logger(r).Errorw("render error response", "error", err)
	}
}

// logger prefers the request scoped logger set up by the server.
func (h *Handler) logger(r *http.Request) *zap.SugaredLogger {
	return logctx.FromOr(r.Context(), h.log)
}
