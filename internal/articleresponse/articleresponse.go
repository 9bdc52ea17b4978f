package articleresponse

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/SergeyParamoshkin/articles/internal/model"
)

// TimeLayout is the wire format of created/updated: local time, second
// precision, no offset.
const TimeLayout = "2006-01-02T15:04:05"

// ArticleResponse is the response payload for the Article data model.
//
// Render is called in top-down order, like a http handler middleware chain,
// so the timestamps are formatted right before marshalling.
type ArticleResponse struct {
	ID      int64  `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Created string `json:"created"`
	Updated string `json:"updated"`

	article *model.Article
	loc     *time.Location
}

func NewArticleResponse(article *model.Article) *ArticleResponse {
	return &ArticleResponse{article: article, loc: time.Local}
}

// In formats timestamps in loc instead of the process local zone.
func (rd *ArticleResponse) In(loc *time.Location) *ArticleResponse {
	rd.loc = loc

	return rd
}

func (rd *ArticleResponse) Render(w http.ResponseWriter, r *http.Request) error {
	rd.ID = rd.article.ID
	rd.Author = rd.article.Author
	rd.Content = rd.article.Content
	rd.Created = FormatTime(rd.article.Created, rd.loc)
	rd.Updated = FormatTime(rd.article.Updated, rd.loc)

	return nil
}

// FormatTime renders t in loc using TimeLayout. A nil loc means local time.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	return t.In(loc).Format(TimeLayout)
}

// ArticleListResponse wraps the collection as {"objects": [...]}.
type ArticleListResponse struct {
	Objects []*ArticleResponse `json:"objects"`
}

func NewArticleListResponse(articles []*model.Article) *ArticleListResponse {
	list := &ArticleListResponse{Objects: make([]*ArticleResponse, 0, len(articles))}
	for _, article := range articles {
		list.Objects = append(list.Objects, NewArticleResponse(article))
	}

	return list
}

// In applies loc to every element.
func (rd *ArticleListResponse) In(loc *time.Location) *ArticleListResponse {
	for _, o := range rd.Objects {
		o.In(loc)
	}

	return rd
}

// render only descends into struct fields, not slices, so the elements are
// rendered here.
func (rd *ArticleListResponse) Render(w http.ResponseWriter, r *http.Request) error {
	for _, o := range rd.Objects {
		if err := o.Render(w, r); err != nil {
			return err
		}
	}

	return nil
}

// MessageResponse is the acknowledgement body, e.g. {"message": "ok"}.
type MessageResponse struct {
	Message string `json:"message"`
}

func (m *MessageResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

var OK render.Renderer = &MessageResponse{Message: "ok"}
