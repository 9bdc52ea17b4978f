package article

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeyParamoshkin/articles/internal/model"
)

// Store is identifier keyed CRUD over articles. Get, Update and Delete
// return a *model.NotFoundError for unknown ids.
type Store interface {
	List(ctx context.Context) ([]*model.Article, error)
	Get(ctx context.Context, id int64) (*model.Article, error)
	Create(ctx context.Context, author, content string) (*model.Article, error)
	Update(ctx context.Context, id int64, patch model.ArticlePatch) (*model.Article, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Clock returns the current time. Stores take one so tests can pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}

	return c()
}

// MemoryStore keeps articles in process memory, in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	articles []*model.Article
	lastID   int64 // guarded by mu; ids are never reused
	clock    Clock
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(clock Clock) *MemoryStore {
	return &MemoryStore{clock: clock}
}

func (s *MemoryStore) List(ctx context.Context) ([]*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Article, 0, len(s.articles))
	for _, a := range s.articles {
		c := *a
		list = append(list, &c)
	}

	return list, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(id)
	if i < 0 {
		return nil, &model.NotFoundError{ID: id}
	}

	c := *s.articles[i]

	return &c, nil
}

func (s *MemoryStore) Create(ctx context.Context, author, content string) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++

	now := s.clock.now()
	a := &model.Article{
		ID:      s.lastID,
		Author:  author,
		Content: content,
		Created: now,
		Updated: now,
	}
	s.articles = append(s.articles, a)

	c := *a

	return &c, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, patch model.ArticlePatch) (*model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil, &model.NotFoundError{ID: id}
	}

	patch.Apply(s.articles[i], s.clock.now())
	c := *s.articles[i]

	return &c, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return &model.NotFoundError{ID: id}
	}

	s.articles = append(s.articles[:i], s.articles[i+1:]...)

	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// index must be called with mu held. Ids are handed out under mu in
// increasing order, so the slice stays sorted by id.
func (s *MemoryStore) index(id int64) int {
	i := sort.Search(len(s.articles), func(i int) bool { return s.articles[i].ID >= id })
	if i < len(s.articles) && s.articles[i].ID == id {
		return i
	}

	return -1
}
