package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fileProfileData represents all profile data stored in the file
type fileProfileData struct {
	Profiles map[uuid.UUID]Profile `json:"profiles"`
}

// FileRepository implements Repository using a JSON file. Uniqueness of
// id, username and email is enforced under the write lock.
type FileRepository struct {
	dataDir string
	data    *fileProfileData
	mutex   sync.RWMutex
}

// NewFileRepository creates a new file-based profile repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir: dataDir,
		data: &fileProfileData{
			Profiles: make(map[uuid.UUID]Profile),
		},
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.data.Profiles[id]
	if !exists {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *FileRepository) GetByUsername(ctx context.Context, username string) (Profile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, p := range r.data.Profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (r *FileRepository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	email = NormalizeEmail(email)
	for _, p := range r.data.Profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (r *FileRepository) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) (Profile, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, exists := r.data.Profiles[id]
	if !exists {
		return Profile{}, ErrNotFound
	}
	p.EmailVerified = verified
	p.UpdatedAt = time.Now().UTC()
	r.data.Profiles[id] = p

	if err := r.save(); err != nil {
		return Profile{}, fmt.Errorf("failed to save: %w", err)
	}
	return p, nil
}

func (r *FileRepository) Insert(ctx context.Context, p Profile) (Profile, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p.Email = NormalizeEmail(p.Email)
	if _, exists := r.data.Profiles[p.ID]; exists {
		return Profile{}, &ConflictError{Field: FieldID}
	}
	for _, existing := range r.data.Profiles {
		if existing.Username == p.Username {
			return Profile{}, &ConflictError{Field: FieldUsername}
		}
		if existing.Email == p.Email {
			return Profile{}, &ConflictError{Field: FieldEmail}
		}
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.data.Profiles[p.ID] = p

	if err := r.save(); err != nil {
		delete(r.data.Profiles, p.ID)
		return Profile{}, fmt.Errorf("failed to save: %w", err)
	}
	return p, nil
}

// load reads profile data from file
func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, "profiles.json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, r.data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if r.data.Profiles == nil {
		r.data.Profiles = make(map[uuid.UUID]Profile)
	}
	return nil
}

// save writes profile data to file atomically
func (r *FileRepository) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, "profiles.json.tmp")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, "profiles.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
