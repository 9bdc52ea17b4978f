package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TimeLayout is the server's timestamp format.
const TimeLayout = "2006-01-02T15:04:05"

// Client talks to the articles API at Addr. DiagAddr, when set, points at
// the diagnostics listener used by Ping.
type Client struct {
	http.Client
	Addr     string
	DiagAddr string
}

type Article struct {
	ID      int64  `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// CreatedAt parses Created in loc.
func (a Article) CreatedAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, a.Created, loc)
}

// UpdatedAt parses Updated in loc.
func (a Article) UpdatedAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, a.Updated, loc)
}

// ArticlePatch is a partial update; nil fields are not sent.
type ArticlePatch struct {
	Author  *string `json:"author,omitempty"`
	Content *string `json:"content,omitempty"`
}

// APIError is a non 2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string   `json:"error"`
	Errors     []string `json:"errors"`
}

func (e *APIError) Error() string {
	switch {
	case len(e.Errors) > 0:
		return fmt.Sprintf("%d: %s", e.StatusCode, strings.Join(e.Errors, "; "))
	case e.Message != "":
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
}

// ErrNoDiagAddr is returned by Ping when DiagAddr is not set.
var ErrNoDiagAddr = errors.New("client: DiagAddr is not set")

// Ping asks the diagnostics listener for /ping and returns its answer.
func (c *Client) Ping(ctx context.Context) (string, error) {
	if c.DiagAddr == "" {
		return "", ErrNoDiagAddr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DiagAddr+"/ping", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return string(body), nil
}

func (c *Client) ListArticles(ctx context.Context) ([]Article, error) {
	var out struct {
		Objects []Article `json:"objects"`
	}

	if err := c.call(ctx, http.MethodGet, "/api/articles", nil, &out); err != nil {
		return nil, err
	}

	return out.Objects, nil
}

func (c *Client) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	if err := c.call(ctx, http.MethodGet, articlePath(id), nil, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

func (c *Client) CreateArticle(ctx context.Context, author, content string) (*Article, error) {
	var a Article

	in := map[string]string{"author": author, "content": content}
	if err := c.call(ctx, http.MethodPost, "/api/articles", in, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

// ReplaceArticle sets both fields with PUT.
func (c *Client) ReplaceArticle(ctx context.Context, id int64, author, content string) (*Article, error) {
	var a Article

	in := map[string]string{"author": author, "content": content}
	if err := c.call(ctx, http.MethodPut, articlePath(id), in, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

// PatchArticle sets the non nil fields of p with PATCH.
func (c *Client) PatchArticle(ctx context.Context, id int64, p ArticlePatch) (*Article, error) {
	var a Article
	if err := c.call(ctx, http.MethodPatch, articlePath(id), p, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

func (c *Client) DeleteArticle(ctx context.Context, id int64) error {
	var out struct {
		Message string `json:"message"`
	}

	return c.call(ctx, http.MethodDelete, articlePath(id), nil, &out)
}

func articlePath(id int64) string {
	return fmt.Sprintf("/api/articles/%d", id)
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Addr+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// The body is best effort; the status alone is enough to report.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)

		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	return nil
}
