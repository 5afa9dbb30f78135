package store

import (
	"strconv"
	"strings"

	"taskapi/internal/models"
)

const keySeparator = ":"

// Schema parameterises an Adapter for one resource type.
type Schema[T any] struct {
	// Resource names the type in errors and logs.
	Resource string
	// Prefix builds record keys as "{Prefix}:{id}".
	Prefix string
	// Counter is the key incremented to allocate ids.
	Counter string
	// Index is the set of live record keys. When empty, records are
	// enumerated by scanning "{Prefix}:*" instead.
	Index string

	Fields models.FieldSet

	// Unique names a field kept unique through string keys
	// "{UniquePrefix}{value}" holding the owning id.
	Unique       string
	UniquePrefix string

	Decode func(models.Fields) (T, error)
	// Compare orders List results. nil keeps store order.
	Compare func(a, b T) int
	// Prepare rewrites supplied fields just before they are stored, after
	// validation.
	Prepare func(models.Fields) error
}

func (s Schema[T]) recordKey(id int64) string {
	return s.Prefix + keySeparator + strconv.FormatInt(id, 10)
}

func (s Schema[T]) recordPattern() string {
	return s.Prefix + keySeparator + "*"
}

// isRecordKey accepts "{Prefix}:{positive integer}" only, so counters and
// other keys sharing the prefix are never taken for records.
func (s Schema[T]) isRecordKey(key string) bool {
	rest, ok := strings.CutPrefix(key, s.Prefix+keySeparator)
	if !ok {
		return false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return err == nil && id > 0 && strconv.FormatInt(id, 10) == rest
}

func (s Schema[T]) uniqueKey(value string) string {
	return s.UniquePrefix + value
}
