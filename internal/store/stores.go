package store

import (
	"taskapi/internal/kv"
	"taskapi/internal/models"
)

// Hasher turns a plain password into the credential that is stored.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Stores holds one adapter per resource type, all sharing a single
// key-value connection.
type Stores struct {
	Users      *Adapter[models.User]
	Tasks      *Adapter[models.Task]
	Priorities *Adapter[models.Priority]
	Tags       *Adapter[models.Tag]
}

func New(store kv.Store, hasher Hasher, log Logger) *Stores {
	return &Stores{
		Users:      NewAdapter(store, UserSchema(hasher), log),
		Tasks:      NewAdapter(store, TaskSchema(), log),
		Priorities: NewAdapter(store, PrioritySchema(), log),
		Tags:       NewAdapter(store, TagSchema(), log),
	}
}

// UserSchema has no membership index; users are enumerated by key scan and
// the email index keeps addresses unique.
func UserSchema(hasher Hasher) Schema[models.User] {
	return Schema[models.User]{
		Resource:     "user",
		Prefix:       "user",
		Counter:      "users:counter",
		Fields:       models.UserFields,
		Unique:       models.FieldEmail,
		UniquePrefix: "users:email:",
		Decode:       models.DecodeUser,
		Compare:      models.CompareUsers,
		Prepare: func(fields models.Fields) error {
			plain, ok := fields[models.FieldPassword]
			if !ok {
				return nil
			}
			hashed, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			fields[models.FieldPassword] = hashed
			return nil
		},
	}
}

// TaskSchema lists tasks in index order, which is unspecified.
func TaskSchema() Schema[models.Task] {
	return Schema[models.Task]{
		Resource: "task",
		Prefix:   "task",
		Counter:  "tasks:counter",
		Index:    "tasks",
		Fields:   models.TaskFields,
		Decode:   models.DecodeTask,
	}
}

func PrioritySchema() Schema[models.Priority] {
	return Schema[models.Priority]{
		Resource: "priority",
		Prefix:   "priority",
		Counter:  "priorities:counter",
		Index:    "priorities",
		Fields:   models.PriorityFields,
		Decode:   models.DecodePriority,
		Compare:  models.ComparePriorities,
	}
}

func TagSchema() Schema[models.Tag] {
	return Schema[models.Tag]{
		Resource: "tag",
		Prefix:   "tag",
		Counter:  "tags:counter",
		Index:    "tags",
		Fields:   models.TagFields,
		Decode:   models.DecodeTag,
		Compare:  models.CompareTags,
	}
}
