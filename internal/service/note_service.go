package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/siyavash-momeni/tracker/internal/db"
	"gorm.io/gorm"
)

const maxNoteTitleRunes = 200

// NoteInput 定义笔记可编辑字段
type NoteInput struct {
	Title   string
	Content string
}

func (in NoteInput) normalize() (NoteInput, error) {
	title := cleanText(in.Title)
	content := cleanText(in.Content)
	if title == "" || content == "" {
		return NoteInput{}, validationError(InvalidNote, "title and content are required")
	}
	if utf8.RuneCountInString(title) > maxNoteTitleRunes {
		return NoteInput{}, validationError(InvalidNote, "title must be at most %d characters", maxNoteTitleRunes)
	}
	return NoteInput{Title: title, Content: content}, nil
}

// NoteService 管理用户自己的笔记
type NoteService struct {
	db *gorm.DB
}

// NewNoteService 构造 NoteService
func NewNoteService(gdb *gorm.DB) *NoteService {
	return &NoteService{db: gdb}
}

// List 按创建时间倒序返回笔记
func (s *NoteService) List(ctx context.Context, ownerID string) ([]db.Note, error) {
	var notes []db.Note
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// Get 获取笔记
func (s *NoteService) Get(ctx context.Context, ownerID, id string) (*db.Note, error) {
	var note db.Note
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &note, nil
}

// Create 新建笔记
func (s *NoteService) Create(ctx context.Context, ownerID string, input NoteInput) (*db.Note, error) {
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}

	note := db.Note{UserID: ownerID, Title: input.Title, Content: input.Content}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return &note, nil
}

// Update 修改笔记标题与内容
func (s *NoteService) Update(ctx context.Context, ownerID, id string, input NoteInput) (*db.Note, error) {
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}

	note, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	note.Title = input.Title
	note.Content = input.Content
	if err := s.db.WithContext(ctx).Save(note).Error; err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

// Delete 删除笔记
func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&db.Note{})
	if result.Error != nil {
		return fmt.Errorf("delete note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}
