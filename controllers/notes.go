package controllers

import (
	"strings"

	"musicschool_go/middleware"
	"musicschool_go/models"

	"github.com/gofiber/fiber/v2"
)

func currentUserID(c *fiber.Ctx) uint {
	if user, err := middleware.GetCurrentUser(c); err == nil {
		return user.ID
	}
	return 0
}

type TeacherNoteController struct {
	Resource[models.TeacherNote, *models.TeacherNote]
}

func NewTeacherNoteController() *TeacherNoteController {
	return &TeacherNoteController{Resource[models.TeacherNote, *models.TeacherNote]{
		Label:   "Teacher note",
		Filters: map[string]string{"teacher_id": "teacher_id", "author_id": "author_id"},
		Order:   "created_at DESC",
		Prepare: func(c *fiber.Ctx, n *models.TeacherNote) error {
			n.Title = strings.TrimSpace(n.Title)
			if n.AuthorID == 0 {
				n.AuthorID = currentUserID(c)
			}
			return nil
		},
	}}
}

type StudentNoteController struct {
	Resource[models.StudentNote, *models.StudentNote]
}

func NewStudentNoteController() *StudentNoteController {
	return &StudentNoteController{Resource[models.StudentNote, *models.StudentNote]{
		Label:   "Student note",
		Filters: map[string]string{"student_id": "student_id", "author_id": "author_id"},
		Order:   "created_at DESC",
		Prepare: func(c *fiber.Ctx, n *models.StudentNote) error {
			n.Title = strings.TrimSpace(n.Title)
			if n.AuthorID == 0 {
				n.AuthorID = currentUserID(c)
			}
			return nil
		},
	}}
}
