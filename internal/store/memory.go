package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process store used in development mode and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data     []byte
	modified time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *Memory) Upload(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memoryObject{
		data:     append([]byte(nil), data...),
		modified: m.now(),
	}
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objs := make([]Object, 0, len(m.objects))
	for name, o := range m.objects {
		objs = append(objs, Object{
			Name:         name,
			LastModified: o.modified,
			Size:         int64(len(o.data)),
			URL:          "memory:///" + name,
		})
	}
	return objs, nil
}

// Get returns the stored bytes for name.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[name]
	return o.data, ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
