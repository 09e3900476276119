package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that Memory implements Store.
var _ Store = (*Memory)(nil)

// Memory is an in-memory implementation of Store.
// It uses maps with a RWMutex for thread-safe access.
// Suitable for development and testing; the SQLite store is used in production.
type Memory struct {
	mu        sync.RWMutex
	projects  map[uint]*Project
	files     map[uint]*File
	messages  map[uint]*ContactMessage
	nextID    uint
	nextFile  uint
	nextMsgID uint
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[uint]*Project),
		files:    make(map[uint]*File),
		messages: make(map[uint]*ContactMessage),
	}
}

// CreateProject persists a project and assigns its ID.
func (m *Memory) CreateProject(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.projects[p.ID] = p.Clone()
	return nil
}

// GetProject retrieves a project and its files.
// Returns a clone to prevent external mutations.
func (m *Memory) GetProject(_ context.Context, id uint) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	c := p.Clone()
	c.Files = m.filesForLocked(id)
	return c, nil
}

// filesForLocked collects file records for a project, oldest first.
// Caller must hold at least a read lock.
func (m *Memory) filesForLocked(projectID uint) []File {
	var files []File
	for _, f := range m.files {
		if f.ProjectID == projectID {
			files = append(files, *f.Clone())
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files
}

// ListProjects returns projects newest first, optionally filtered by user.
func (m *Memory) ListProjects(_ context.Context, userID string) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(userID, false), nil
}

// ListFavorites returns favorite projects newest first.
func (m *Memory) ListFavorites(_ context.Context, userID string) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(userID, true), nil
}

func (m *Memory) listLocked(userID string, favoritesOnly bool) []*Project {
	result := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		if userID != "" && p.UserID != userID {
			continue
		}
		if favoritesOnly && !p.IsFavorite {
			continue
		}
		c := p.Clone()
		c.Files = m.filesForLocked(p.ID)
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

// UpdateProject applies the non-nil fields of the update.
func (m *Memory) UpdateProject(_ context.Context, id uint, upd ProjectUpdate) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.IsFavorite != nil {
		p.IsFavorite = *upd.IsFavorite
	}
	if upd.SilenceThresholdDB != nil {
		p.SilenceThresholdDB = *upd.SilenceThresholdDB
	}
	if upd.MinSilenceMS != nil {
		p.MinSilenceMS = *upd.MinSilenceMS
	}
	if upd.OutputFormat != nil {
		p.OutputFormat = *upd.OutputFormat
	}
	c := p.Clone()
	c.Files = m.filesForLocked(id)
	return c, nil
}

// DeleteProject removes a project and its file records.
func (m *Memory) DeleteProject(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(m.projects, id)
	for fid, f := range m.files {
		if f.ProjectID == id {
			delete(m.files, fid)
		}
	}
	return nil
}

// CountProjects returns the number of stored projects for a user.
func (m *Memory) CountProjects(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, p := range m.projects {
		if userID == "" || p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// OldestProject returns the user's oldest project with its files.
func (m *Memory) OldestProject(_ context.Context, userID string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest *Project
	for _, p := range m.projects {
		if userID != "" && p.UserID != userID {
			continue
		}
		if oldest == nil || p.ID < oldest.ID {
			oldest = p
		}
	}
	if oldest == nil {
		return nil, ErrProjectNotFound
	}
	c := oldest.Clone()
	c.Files = m.filesForLocked(oldest.ID)
	return c, nil
}

// CreateFile persists a file record and assigns its ID.
func (m *Memory) CreateFile(_ context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFile++
	f.ID = m.nextFile
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	m.files[f.ID] = f.Clone()
	return nil
}

// GetFile retrieves a file record by ID.
// Returns a clone to prevent external mutations.
func (m *Memory) GetFile(_ context.Context, id uint) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return f.Clone(), nil
}

// UpdateFile applies the non-nil fields of the update.
func (m *Memory) UpdateFile(_ context.Context, id uint, upd FileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ErrFileNotFound
	}
	upd.apply(f)
	return nil
}

// DeleteFile removes a file record.
func (m *Memory) DeleteFile(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(m.files, id)
	return nil
}

// CreateContactMessage persists a contact form submission.
func (m *Memory) CreateContactMessage(_ context.Context, msg *ContactMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsgID++
	msg.ID = m.nextMsgID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	c := *msg
	m.messages[msg.ID] = &c
	return nil
}
