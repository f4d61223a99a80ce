package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/service"
)

type notePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func noteToPayload(note db.Note) gin.H {
	return gin.H{
		"id":        note.ID,
		"title":     note.Title,
		"content":   note.Content,
		"createdAt": note.CreatedAt,
		"updatedAt": note.UpdatedAt,
	}
}

// ListNotes 返回当前用户的笔记
func (a *API) ListNotes(c *gin.Context) {
	notes, err := a.notes.List(c.Request.Context(), ownerID(c))
	if err != nil {
		a.handleServiceError(c, err, "failed to list notes")
		return
	}

	items := make([]gin.H, 0, len(notes))
	for _, note := range notes {
		items = append(items, noteToPayload(note))
	}
	c.JSON(http.StatusOK, gin.H{"notes": items})
}

// GetNote 返回单条笔记
func (a *API) GetNote(c *gin.Context) {
	note, err := a.notes.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		a.handleServiceError(c, err, "failed to load note")
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": noteToPayload(*note)})
}

// CreateNote 新建笔记
func (a *API) CreateNote(c *gin.Context) {
	var payload notePayload
	if !bindJSON(c, &payload, "invalid note payload") {
		return
	}

	note, err := a.notes.Create(c.Request.Context(), ownerID(c), service.NoteInput(payload))
	if err != nil {
		a.handleServiceError(c, err, "failed to create note")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": noteToPayload(*note)})
}

// UpdateNote 修改笔记
func (a *API) UpdateNote(c *gin.Context) {
	var payload notePayload
	if !bindJSON(c, &payload, "invalid note payload") {
		return
	}

	note, err := a.notes.Update(c.Request.Context(), ownerID(c), c.Param("id"), service.NoteInput(payload))
	if err != nil {
		a.handleServiceError(c, err, "failed to update note")
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": noteToPayload(*note)})
}

// DeleteNote 删除笔记
func (a *API) DeleteNote(c *gin.Context) {
	if err := a.notes.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		a.handleServiceError(c, err, "failed to delete note")
		return
	}
	c.Status(http.StatusNoContent)
}
