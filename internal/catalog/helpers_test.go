package catalog

import (
	"context"
	"errors"
	"sync"
)

// memRepo is an in-memory Repository for Directory and VisitRecorder tests.
type memRepo struct {
	mu         sync.Mutex
	sites      []Site
	increments map[string]int64
	incCalls   int
	failNext   error
}

func newMemRepo(sites ...Site) *memRepo {
	return &memRepo{sites: sites, increments: make(map[string]int64)}
}

func (m *memRepo) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memRepo) List(_ context.Context) ([]Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	return cloneSites(m.sites), nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := indexOf(m.sites, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	s := cloneSite(m.sites[i])
	return &s, nil
}

func (m *memRepo) Create(_ context.Context, site *Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if indexOf(m.sites, site.ID) >= 0 {
		return ErrDuplicate
	}
	m.sites = append(m.sites, cloneSite(*site))
	return nil
}

func (m *memRepo) Update(_ context.Context, site *Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	i := indexOf(m.sites, site.ID)
	if i < 0 {
		return ErrNotFound
	}
	updated := cloneSite(*site)
	updated.Visits = m.sites[i].Visits
	updated.CreatedAt = m.sites[i].CreatedAt
	m.sites[i] = updated
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	i := indexOf(m.sites, id)
	if i < 0 {
		return ErrNotFound
	}
	m.sites = append(m.sites[:i], m.sites[i+1:]...)
	return nil
}

func (m *memRepo) IncrementVisits(_ context.Context, id string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incCalls++
	if err := m.takeErr(); err != nil {
		return err
	}
	i := indexOf(m.sites, id)
	if i < 0 {
		return ErrNotFound
	}
	m.sites[i].Visits += n
	m.increments[id] += n
	return nil
}

func (m *memRepo) incremented(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.increments[id]
}

func (m *memRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incCalls
}

func (m *memRepo) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

var errBoom = errors.New("boom")

func sampleSites() []Site {
	return []Site{
		{ID: "chatgpt", Name: "ChatGPT", URL: "https://chat.openai.com", Description: "Conversational assistant", Tags: []string{"Chat", "LLM"}, Featured: true},
		{ID: "midjourney", Name: "Midjourney", URL: "https://midjourney.com", Description: "Image generation from prompts", Tags: []string{"Image"}},
		{ID: "tongyi", Name: "通义千问", URL: "https://tongyi.aliyun.com", Description: "阿里云大模型", Tags: []string{"Chat"}, Category: "国产"},
		{ID: "deepl", Name: "DeepL", URL: "https://www.deepl.com", Description: "Translation with neural networks", Tags: []string{"Writing"}, Visits: 10},
	}
}
