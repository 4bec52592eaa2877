package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-qa/core/content"
	"github.com/trezcool/masomo-qa/core/qa"
	"github.com/trezcool/masomo-qa/core/user"
)

type (
	// DB is a process local store used in tests and when no database is configured.
	DB struct {
		user     *userTable
		content  *contentTable
		question *questionTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	contentTable struct {
		table map[int64]*content.Item
		pk    int64
		mutex sync.RWMutex
	}

	questionTable struct {
		table   map[string]*qa.Question
		answers map[string][]qa.Answer // by question ID
		mutex   sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		content:  &contentTable{table: make(map[int64]*content.Item)},
		question: &questionTable{table: make(map[string]*qa.Question), answers: make(map[string][]qa.Answer)},
	}
}

// Reset drops every row.
func (db *DB) Reset() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.content.mutex.Lock()
	db.content.table = make(map[int64]*content.Item)
	db.content.pk = 0
	db.content.mutex.Unlock()

	db.question.mutex.Lock()
	db.question.table = make(map[string]*qa.Question)
	db.question.answers = make(map[string][]qa.Answer)
	db.question.mutex.Unlock()
}
