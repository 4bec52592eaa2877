package content

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-qa/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the item with the given id and type.
// An item stored with another type is reported as ErrNotFound.
func (svc *Service) Get(ctx context.Context, typ Type, id int64) (Item, error) {
	it, err := svc.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if it.Type != typ {
		return Item{}, ErrNotFound
	}
	return it, nil
}

// NewItem contains information needed to register a content item.
type NewItem struct {
	Type     Type
	Title    string
	CourseID *int64
	Link     string
}

func (svc *Service) Create(ctx context.Context, ni NewItem) (Item, error) {
	ni.Title = core.CleanString(ni.Title)
	if !ni.Type.IsValid() {
		return Item{}, core.NewValidationError(nil, core.FieldError{Field: "type", Error: "must be one of course, lesson or topic"})
	}
	if ni.Title == "" {
		return Item{}, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if ni.Type == TypeCourse {
		ni.CourseID = nil
	} else if ni.CourseID != nil {
		if _, err := svc.Get(ctx, TypeCourse, *ni.CourseID); err != nil {
			if errors.Cause(err) == core.ErrNotFound {
				return Item{}, core.NewValidationError(nil, core.FieldError{Field: "course", Error: "course not found"})
			}
			return Item{}, err
		}
	}
	return svc.repo.CreateItem(ctx, Item{
		Type:      ni.Type,
		Title:     ni.Title,
		CourseID:  ni.CourseID,
		Link:      core.CleanString(ni.Link),
		CreatedAt: time.Now().UTC(),
	})
}
