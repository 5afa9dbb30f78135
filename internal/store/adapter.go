package store

import (
	"context"
	"slices"
	"strconv"

	"taskapi/internal/kv"
	"taskapi/internal/models"
)

type Logger interface {
	Debugf(string, ...any)
	Infof(string, ...any)
}

// Adapter maps records of one resource type onto the key-value store: a hash
// per record, a counter for ids and a set indexing live record keys.
//
// Multi-step operations are not atomic. A concurrent reader can see a record
// that is written but not yet indexed, or an index entry whose hash is already
// gone. List skips the latter and the reconcile pass repairs both.
type Adapter[T any] struct {
	schema Schema[T]
	kv     kv.Store
	log    Logger
}

func NewAdapter[T any](store kv.Store, schema Schema[T], log Logger) *Adapter[T] {
	return &Adapter[T]{schema: schema, kv: store, log: log}
}

func (a *Adapter[T]) Resource() string {
	return a.schema.Resource
}

// Create validates input, allocates an id and stores the record. Nothing is
// written when validation or the uniqueness pre-check fails.
//
// A unique value is claimed only after the record is written, so an entry
// whose owner record is missing is never a create still in flight.
func (a *Adapter[T]) Create(ctx context.Context, input models.Fields) (T, error) {
	var zero T
	s := a.schema

	fields := s.Fields.Pick(input)
	if err := s.Fields.Validate(fields); err != nil {
		return zero, NewValidationError(s.Resource, err)
	}
	s.Fields.NormalizeIntegers(fields)
	s.Fields.FillBlank(fields)

	if s.Unique != "" {
		value := fields[s.Unique]
		_, live, err := a.uniqueOwner(ctx, value)
		if err != nil {
			return zero, err
		}
		if live {
			return zero, NewConflictError(s.Resource, s.Unique, value)
		}
	}

	if err := a.prepare(fields); err != nil {
		return zero, err
	}

	id, err := a.kv.Increment(ctx, s.Counter)
	if err != nil {
		return zero, NewStoreError(s.Resource, "create", err)
	}
	key := s.recordKey(id)

	record := s.Fields.WithDefaults(fields)
	record[models.FieldID] = strconv.FormatInt(id, 10)
	if err := a.kv.SetFields(ctx, key, record); err != nil {
		return zero, NewStoreError(s.Resource, "create", err)
	}

	// A concurrent create may have claimed the value since the pre-check.
	// This id is then skipped, which is fine as ids need not be dense.
	if s.Unique != "" {
		if err := a.claimUnique(ctx, fields[s.Unique], id); err != nil {
			a.discard(ctx, key)
			return zero, err
		}
	}

	if s.Index != "" {
		if err := a.kv.AddMember(ctx, s.Index, key); err != nil {
			return zero, NewStoreError(s.Resource, "create", err)
		}
	}

	a.log.Debugf("created %s", key)
	return a.decode("create", record)
}

// Get returns the record stored under id.
func (a *Adapter[T]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	fields, err := a.read(ctx, "get", id)
	if err != nil {
		return zero, err
	}
	return a.decode("get", fields)
}

// List returns every live record. Index entries whose hash is gone are
// skipped rather than failing the listing.
func (a *Adapter[T]) List(ctx context.Context) ([]T, error) {
	s := a.schema

	keys, err := a.listKeys(ctx)
	if err != nil {
		return nil, NewStoreError(s.Resource, "list", err)
	}

	records := make([]T, 0, len(keys))
	for _, key := range keys {
		fields, err := a.kv.GetFields(ctx, key)
		if err != nil {
			return nil, NewStoreError(s.Resource, "list", err)
		}
		if !exists(fields) {
			a.log.Debugf("skipping %s: indexed but not stored", key)
			continue
		}
		record, err := a.decode("list", fields)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if s.Compare != nil {
		slices.SortStableFunc(records, s.Compare)
	}
	return records, nil
}

// Update overwrites only the supplied writable fields and returns the merged
// record. The membership index is left alone.
func (a *Adapter[T]) Update(ctx context.Context, id int64, input models.Fields) (T, error) {
	var zero T
	s := a.schema

	current, err := a.read(ctx, "update", id)
	if err != nil {
		return zero, err
	}

	fields := s.Fields.Pick(input)
	if err := s.Fields.ValidatePartial(fields); err != nil {
		return zero, NewValidationError(s.Resource, err)
	}
	s.Fields.NormalizeIntegers(fields)
	s.Fields.FillBlank(fields)

	if err := a.prepare(fields); err != nil {
		return zero, err
	}

	// The new value is claimed before it is written and the old one released
	// after, so at no point is the record holding a value it does not own.
	var released string
	if s.Unique != "" && fields.Has(s.Unique) && fields[s.Unique] != current[s.Unique] {
		if value := fields[s.Unique]; value != "" {
			if err := a.claimUnique(ctx, value, id); err != nil {
				return zero, err
			}
		}
		released = current[s.Unique]
	}

	key := s.recordKey(id)
	for _, name := range s.Fields.Writable {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if err := a.kv.SetField(ctx, key, name, value); err != nil {
			return zero, NewStoreError(s.Resource, "update", err)
		}
		current[name] = value
	}

	if released != "" {
		if err := a.releaseUnique(ctx, released, id); err != nil {
			return zero, err
		}
	}

	return a.decode("update", current)
}

// Delete removes the record, then its index entry.
func (a *Adapter[T]) Delete(ctx context.Context, id int64) error {
	s := a.schema

	current, err := a.read(ctx, "delete", id)
	if err != nil {
		return err
	}

	key := s.recordKey(id)
	if err := a.kv.Delete(ctx, key); err != nil {
		return NewStoreError(s.Resource, "delete", err)
	}

	if s.Index != "" {
		if err := a.kv.RemoveMember(ctx, s.Index, key); err != nil {
			return NewStoreError(s.Resource, "delete", err)
		}
	}

	if s.Unique != "" && current[s.Unique] != "" {
		if err := a.releaseUnique(ctx, current[s.Unique], id); err != nil {
			return err
		}
	}

	a.log.Debugf("deleted %s", key)
	return nil
}

// read returns the stored fields for id or a NotFoundError.
func (a *Adapter[T]) read(ctx context.Context, op string, id int64) (models.Fields, error) {
	fields, err := a.kv.GetFields(ctx, a.schema.recordKey(id))
	if err != nil {
		return nil, NewStoreError(a.schema.Resource, op, err)
	}
	if !exists(fields) {
		return nil, NewNotFoundError(a.schema.Resource, id)
	}
	return fields, nil
}

func (a *Adapter[T]) decode(op string, fields models.Fields) (T, error) {
	record, err := a.schema.Decode(fields)
	if err != nil {
		var zero T
		return zero, NewStoreError(a.schema.Resource, op, err)
	}
	return record, nil
}

func (a *Adapter[T]) prepare(fields models.Fields) error {
	if a.schema.Prepare == nil {
		return nil
	}
	if err := a.schema.Prepare(fields); err != nil {
		return NewValidationError(a.schema.Resource, err)
	}
	return nil
}

// listKeys returns the keys List should read: the index members, or a key
// scan for types without an index.
func (a *Adapter[T]) listKeys(ctx context.Context) ([]string, error) {
	if a.schema.Index != "" {
		return a.kv.Members(ctx, a.schema.Index)
	}
	return a.scanRecordKeys(ctx)
}

func (a *Adapter[T]) scanRecordKeys(ctx context.Context) ([]string, error) {
	keys, err := a.kv.Keys(ctx, a.schema.recordPattern())
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(keys, func(key string) bool {
		return !a.schema.isRecordKey(key)
	}), nil
}

// uniqueOwner returns the id holding value and whether that record still
// exists. A record that exists keeps its claim even if it now holds another
// value: it is mid-update, and reconcile drops the entry if the update never
// finished.
func (a *Adapter[T]) uniqueOwner(ctx context.Context, value string) (string, bool, error) {
	s := a.schema
	owner, found, err := a.kv.GetString(ctx, s.uniqueKey(value))
	if err != nil {
		return "", false, NewStoreError(s.Resource, "lookup "+s.Unique, err)
	}
	if !found {
		return "", false, nil
	}

	fields, err := a.kv.GetFields(ctx, s.Prefix+keySeparator+owner)
	if err != nil {
		return "", false, NewStoreError(s.Resource, "lookup "+s.Unique, err)
	}
	return owner, exists(fields), nil
}

// claimUnique points value at id. An entry left by a deleted record is taken
// over; one held by another live record is a conflict, as is losing a race
// for the takeover.
func (a *Adapter[T]) claimUnique(ctx context.Context, value string, id int64) error {
	s := a.schema
	key := s.uniqueKey(value)
	idStr := strconv.FormatInt(id, 10)

	claimed, err := a.kv.SetStringNX(ctx, key, idStr)
	if err != nil {
		return NewStoreError(s.Resource, "claim "+s.Unique, err)
	}
	if claimed {
		return nil
	}

	owner, live, err := a.uniqueOwner(ctx, value)
	if err != nil {
		return err
	}
	switch {
	case owner == idStr:
		return nil
	case live:
		return NewConflictError(s.Resource, s.Unique, value)
	case owner == "":
		// released since the first attempt
		claimed, err = a.kv.SetStringNX(ctx, key, idStr)
	default:
		a.log.Infof("taking over stale %s from %s:%s", key, s.Prefix, owner)
		claimed, err = a.kv.CompareAndSwap(ctx, key, owner, idStr)
	}
	if err != nil {
		return NewStoreError(s.Resource, "claim "+s.Unique, err)
	}
	if !claimed {
		return NewConflictError(s.Resource, s.Unique, value)
	}
	return nil
}

// releaseUnique drops the entry for value if id still owns it.
func (a *Adapter[T]) releaseUnique(ctx context.Context, value string, id int64) error {
	s := a.schema
	if _, err := a.kv.CompareAndDelete(ctx, s.uniqueKey(value), strconv.FormatInt(id, 10)); err != nil {
		return NewStoreError(s.Resource, "release "+s.Unique, err)
	}
	return nil
}

// discard removes a record whose create could not complete. A failure here
// leaves an unindexed record for reconcile.
func (a *Adapter[T]) discard(ctx context.Context, key string) {
	if err := a.kv.Delete(ctx, key); err != nil {
		a.log.Infof("failed to discard %s: %v", key, err)
	}
}

// exists treats an empty hash, or one without an id, as absent.
func exists(fields map[string]string) bool {
	return len(fields) > 0 && fields[models.FieldID] != ""
}
