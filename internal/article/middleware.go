package article

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/SergeyParamoshkin/articles/internal/errresponse"
	"github.com/SergeyParamoshkin/articles/internal/model"
)

type ctxKey int8

const ctxKeyArticle ctxKey = iota

// ArticleCtx middleware is used to load an Article object from
// the URL parameters passed through as the request. In case
// the Article could not be found, we stop here and return a 404.
func (h *Handler) ArticleCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.articleID(w, r)
		if !ok {
			return
		}

		article, err := h.store.Get(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)

			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyArticle, article)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// articleFrom returns the Article stored by ArticleCtx. Handlers mounted
// behind ArticleCtx can rely on it being set.
func articleFrom(ctx context.Context) *model.Article {
	return ctx.Value(ctxKeyArticle).(*model.Article)
}

// articleID parses the {articleID} URL parameter. The route only matches
// digits, so the only failure left is an id outside the int64 range, which
// can not exist either.
func (h *Handler) articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "articleID")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if err := render.Render(w, r, errresponse.ErrArticleNotFound(raw)); err != nil {
			h.logger(r).Errorw("render response", "error", err)
		}

		return 0, false
	}

	return id, true
}
