package store

import (
	"context"
	"slices"
	"strings"

	"taskapi/internal/models"
)

// Report describes what a reconcile pass found and, unless DryRun, fixed.
type Report struct {
	Resource string   `json:"resource"`
	DryRun   bool     `json:"dry_run"`
	Records  int      `json:"records"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
}

// Clean reports whether nothing was out of step.
func (r Report) Clean() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Reconciler is implemented by every Adapter.
type Reconciler interface {
	Resource() string
	Reconcile(ctx context.Context, dryRun bool) (Report, error)
}

// Reconcilers returns the adapters in a fixed order.
func (s *Stores) Reconcilers() []Reconciler {
	return []Reconciler{s.Users, s.Tasks, s.Priorities, s.Tags}
}

// Reconcile brings the auxiliary indexes back in line with the stored
// records. Records found by key scan but missing from the membership index
// are added, index members without a record are removed. For a unique field,
// entries pointing at missing records or at records that no longer carry the
// value are removed and live values without an entry are restored.
//
// It is an offline repair. Run concurrently with writers it may remove an
// entry for a record that is being created.
func (a *Adapter[T]) Reconcile(ctx context.Context, dryRun bool) (Report, error) {
	s := a.schema
	report := Report{Resource: s.Resource, DryRun: dryRun, Added: []string{}, Removed: []string{}}

	keys, err := a.scanRecordKeys(ctx)
	if err != nil {
		return report, NewStoreError(s.Resource, "reconcile", err)
	}
	live := make(map[string]models.Fields, len(keys))
	for _, key := range keys {
		fields, err := a.kv.GetFields(ctx, key)
		if err != nil {
			return report, NewStoreError(s.Resource, "reconcile", err)
		}
		if exists(fields) {
			live[key] = fields
		}
	}
	report.Records = len(live)

	if s.Index != "" {
		if err := a.reconcileIndex(ctx, live, &report); err != nil {
			return report, err
		}
	}
	if s.Unique != "" {
		if err := a.reconcileUnique(ctx, live, &report); err != nil {
			return report, err
		}
	}

	slices.Sort(report.Added)
	slices.Sort(report.Removed)
	if !report.Clean() {
		a.log.Infof("reconcile %s: added %v removed %v (dry run %v)", s.Resource, report.Added, report.Removed, dryRun)
	}
	return report, nil
}

func (a *Adapter[T]) reconcileIndex(ctx context.Context, live map[string]models.Fields, report *Report) error {
	s := a.schema

	members, err := a.kv.Members(ctx, s.Index)
	if err != nil {
		return NewStoreError(s.Resource, "reconcile", err)
	}
	indexed := make(map[string]bool, len(members))
	for _, member := range members {
		indexed[member] = true
		if _, ok := live[member]; ok {
			continue
		}
		report.Removed = append(report.Removed, member)
		if report.DryRun {
			continue
		}
		if err := a.kv.RemoveMember(ctx, s.Index, member); err != nil {
			return NewStoreError(s.Resource, "reconcile", err)
		}
	}

	for key := range live {
		if indexed[key] {
			continue
		}
		report.Added = append(report.Added, key)
		if report.DryRun {
			continue
		}
		if err := a.kv.AddMember(ctx, s.Index, key); err != nil {
			return NewStoreError(s.Resource, "reconcile", err)
		}
	}
	return nil
}

func (a *Adapter[T]) reconcileUnique(ctx context.Context, live map[string]models.Fields, report *Report) error {
	s := a.schema

	entries, err := a.kv.Keys(ctx, s.UniquePrefix+"*")
	if err != nil {
		return NewStoreError(s.Resource, "reconcile", err)
	}

	claimed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		value := strings.TrimPrefix(entry, s.UniquePrefix)
		owner, found, err := a.kv.GetString(ctx, entry)
		if err != nil {
			return NewStoreError(s.Resource, "reconcile", err)
		}
		fields, ok := live[s.Prefix+keySeparator+owner]
		if found && ok && fields[s.Unique] == value {
			claimed[value] = true
			continue
		}
		report.Removed = append(report.Removed, entry)
		if report.DryRun {
			continue
		}
		if err := a.kv.Delete(ctx, entry); err != nil {
			return NewStoreError(s.Resource, "reconcile", err)
		}
	}

	for _, fields := range live {
		value := fields[s.Unique]
		if value == "" || claimed[value] {
			continue
		}
		// two live records sharing a value: the first one seen keeps it
		claimed[value] = true
		entry := s.uniqueKey(value)
		report.Added = append(report.Added, entry)
		if report.DryRun {
			continue
		}
		if _, err := a.kv.SetStringNX(ctx, entry, fields[models.FieldID]); err != nil {
			return NewStoreError(s.Resource, "reconcile", err)
		}
	}
	return nil
}
