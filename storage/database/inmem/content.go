package inmemdb

import (
	"context"

	"github.com/trezcool/masomo-qa/core/content"
)

type contentRepository struct {
	db *contentTable
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db.content}
}

func (repo *contentRepository) CreateItem(_ context.Context, it content.Item) (content.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pk++
	it.ID = repo.db.pk
	repo.db.table[it.ID] = &it
	return it, nil
}

func (repo *contentRepository) GetItem(_ context.Context, id int64) (content.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if it, ok := repo.db.table[id]; ok {
		return *it, nil
	}
	return content.Item{}, content.ErrNotFound
}
