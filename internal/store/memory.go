package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/bsdetector/internal/model"
)

// Memory keeps records in process. Used for tests and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	records []*model.InvestigationRecord // insertion order
	byID    map[string]*model.InvestigationRecord
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]*model.InvestigationRecord)}
}

func (m *Memory) FindByURLWithAnnotations(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return m.newest(url, func(r *model.InvestigationRecord) bool {
		return r.Replacements != nil
	}), nil
}

func (m *Memory) FindByURLWithReport(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return m.newest(url, func(r *model.InvestigationRecord) bool {
		return r.Report != nil && r.Replacements == nil
	}), nil
}

func (m *Memory) GetLatestByURL(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	return m.newest(url, func(*model.InvestigationRecord) bool { return true }), nil
}

// newest scans in insertion order so a later insert wins a CreatedAt tie
func (m *Memory) newest(url string, match func(*model.InvestigationRecord) bool) *model.InvestigationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.InvestigationRecord
	for _, r := range m.records {
		if r.URL == nil || *r.URL != url || !match(r) {
			continue
		}
		if best == nil || !r.CreatedAt.Before(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	return cloneRecord(best)
}

func (m *Memory) Insert(ctx context.Context, rec *model.InvestigationRecord) error {
	if err := prepare(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	stored := cloneRecord(rec)
	m.records = append(m.records, stored)
	m.byID[stored.ID] = stored
	return nil
}

func (m *Memory) PatchAnnotations(ctx context.Context, id string, anns []model.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if anns == nil {
		anns = []model.Annotation{}
	}
	rec.Replacements = cloneAnnotations(anns)
	return nil
}

// Len returns the number of stored records
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
