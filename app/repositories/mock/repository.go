package mock

import (
	"context"
	"errors"
	"sort"
	"sync"

	"blogapi/app/models"
	"blogapi/app/repositories"
)

var _ repositories.PostRepository = (*PostRepository)(nil)

type PostRepository struct {
	posts  map[int64]*models.Post
	nextID int64
	mutex  sync.RWMutex

	// FailCreate, when set, is returned by Create without storing anything.
	FailCreate error
}

func NewPostRepository() *PostRepository {
	return &PostRepository{
		posts:  make(map[int64]*models.Post),
		nextID: 1,
	}
}

func (m *PostRepository) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.posts = make(map[int64]*models.Post)
	m.nextID = 1
}

// Len reports how many posts are stored.
func (m *PostRepository) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.posts)
}

func (m *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if m.FailCreate != nil {
		return m.FailCreate
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	post.ID = m.nextID
	m.nextID++
	m.posts[post.ID] = post.Clone()
	return nil
}

func (m *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	post, exists := m.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return post.Clone(), nil
}

func (m *PostRepository) Update(ctx context.Context, post *models.Post) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	existing, exists := m.posts[post.ID]
	if !exists {
		return repositories.ErrNotFound
	}
	stored := post.Clone()
	stored.CreatedAt = existing.CreatedAt
	m.posts[post.ID] = stored
	return nil
}

func (m *PostRepository) Delete(ctx context.Context, id int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.posts[id]; !exists {
		return repositories.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *PostRepository) List(ctx context.Context) ([]*models.Post, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	posts := make([]*models.Post, 0, len(m.posts))
	for _, post := range m.posts {
		posts = append(posts, post.Clone())
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (m *PostRepository) Close() error {
	return nil
}

// ErrUnavailable is a convenience failure for tests exercising store errors.
var ErrUnavailable = errors.New("store unavailable")
