package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/spool/pkg/vector"
)

// MockVectorDriver is a test vector driver keeping records in memory.
type MockVectorDriver struct {
	Records map[string]vector.Record
	order   []string

	// Results, when set, is returned verbatim from Query.
	Results []vector.QueryResult

	// FailAdd causes Add to return an error.
	FailAdd bool

	// FailDelete causes Delete to return an error.
	FailDelete bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Records: make(map[string]vector.Record),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, recs []vector.Record) error {
	if m.FailAdd {
		return fmt.Errorf("%w: mock add failure", vector.ErrConnection)
	}
	for _, rec := range recs {
		if _, ok := m.Records[rec.ID]; !ok {
			m.order = append(m.order, rec.ID)
		}
		m.Records[rec.ID] = rec
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Record, error) {
	var out []vector.Record
	for _, id := range ids {
		if rec, ok := m.Records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	if m.FailDelete {
		return fmt.Errorf("%w: mock delete failure", vector.ErrConnection)
	}
	for _, id := range ids {
		if _, ok := m.Records[id]; ok {
			delete(m.Records, id)
			for i, existing := range m.order {
				if existing == id {
					m.order = append(m.order[:i], m.order[i+1:]...)
					break
				}
			}
		}
	}
	return nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int64, error) {
	return int64(len(m.Records)), nil
}

func (m *MockVectorDriver) IDs(_ context.Context) ([]string, error) {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out, nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
