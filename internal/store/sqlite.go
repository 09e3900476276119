package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Compile-time check that SQLite implements Store.
var _ Store = (*SQLite)(nil)

// SQLite is a Store backed by a SQLite database through GORM.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) a SQLite database at path and migrates the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&Project{}, &File{}, &ContactMessage{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// DB exposes the underlying GORM handle for migrations and tests.
func (s *SQLite) DB() *gorm.DB {
	return s.db
}

// CreateProject persists a project and assigns its ID.
func (s *SQLite) CreateProject(ctx context.Context, p *Project) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project with its files.
func (s *SQLite) GetProject(ctx context.Context, id uint) (*Project, error) {
	var p Project
	err := s.db.WithContext(ctx).Preload("Files").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns projects newest first, optionally filtered by user.
func (s *SQLite) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	q := s.db.WithContext(ctx).Preload("Files").Order("created_at DESC, id DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var projects []*Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListFavorites returns favorite projects newest first.
func (s *SQLite) ListFavorites(ctx context.Context, userID string) ([]*Project, error) {
	q := s.db.WithContext(ctx).Preload("Files").
		Where("is_favorite = ?", true).
		Order("created_at DESC, id DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var projects []*Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return projects, nil
}

// UpdateProject applies the non-nil fields of the update.
func (s *SQLite) UpdateProject(ctx context.Context, id uint, upd ProjectUpdate) (*Project, error) {
	updates := map[string]any{}
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.IsFavorite != nil {
		updates["is_favorite"] = *upd.IsFavorite
	}
	if upd.SilenceThresholdDB != nil {
		updates["silence_threshold_db"] = *upd.SilenceThresholdDB
	}
	if upd.MinSilenceMS != nil {
		updates["min_silence_ms"] = *upd.MinSilenceMS
	}
	if upd.OutputFormat != nil {
		updates["output_format"] = *upd.OutputFormat
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&Project{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrProjectNotFound
		}
	}

	return s.GetProject(ctx, id)
}

// DeleteProject removes a project and its file records.
func (s *SQLite) DeleteProject(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Project{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProjectNotFound
		}
		if err := tx.Where("project_id = ?", id).Delete(&File{}).Error; err != nil {
			return fmt.Errorf("delete project files: %w", err)
		}
		return nil
	})
}

// CountProjects returns the number of stored projects for a user.
func (s *SQLite) CountProjects(ctx context.Context, userID string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&Project{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// OldestProject returns the user's oldest project with its files.
func (s *SQLite) OldestProject(ctx context.Context, userID string) (*Project, error) {
	q := s.db.WithContext(ctx).Preload("Files").Order("created_at ASC, id ASC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var p Project
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("oldest project: %w", err)
	}
	return &p, nil
}

// CreateFile persists a file record and assigns its ID.
func (s *SQLite) CreateFile(ctx context.Context, f *File) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetFile retrieves a file record by ID.
func (s *SQLite) GetFile(ctx context.Context, id uint) (*File, error) {
	var f File
	err := s.db.WithContext(ctx).First(&f, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &f, nil
}

// UpdateFile applies the non-nil fields of the update inside a transaction
// so the progress invariants hold under concurrent writers.
func (s *SQLite) UpdateFile(ctx context.Context, id uint, upd FileUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f File
		if err := tx.First(&f, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFileNotFound
			}
			return fmt.Errorf("load file: %w", err)
		}
		upd.apply(&f)
		// Save writes all fields, including cleared pointer columns.
		if err := tx.Save(&f).Error; err != nil {
			return fmt.Errorf("save file: %w", err)
		}
		return nil
	})
}

// DeleteFile removes a file record.
func (s *SQLite) DeleteFile(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&File{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete file: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

// CreateContactMessage persists a contact form submission.
func (s *SQLite) CreateContactMessage(ctx context.Context, m *ContactMessage) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create contact message: %w", err)
	}
	return nil
}
