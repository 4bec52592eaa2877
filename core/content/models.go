package content

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core"
)

// Type is the kind of a related content item.
type Type string

const (
	TypeCourse Type = "course"
	TypeLesson Type = "lesson"
	TypeTopic  Type = "topic"
)

// AllowedTypes lists the content types questions can be attached to.
var AllowedTypes = []Type{TypeCourse, TypeLesson, TypeTopic}

var ErrNotFound = errors.Wrap(core.ErrNotFound, "content item")

func (t Type) IsValid() bool {
	for _, at := range AllowedTypes {
		if t == at {
			return true
		}
	}
	return false
}

// Item is a course, lesson or topic questions can be asked about.
type Item struct {
	ID        int64     `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	CourseID  *int64    `json:"course_id"` // parent course of lessons & topics
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveCourseID returns the course the item belongs to; a course belongs to itself.
func (it Item) ResolveCourseID() *int64 {
	if it.Type == TypeCourse {
		id := it.ID
		return &id
	}
	return it.CourseID
}

type Repository interface {
	CreateItem(ctx context.Context, it Item) (Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
}
