package store

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type executedQuery struct {
	Query  string
	Params map[string]any
}

// MockDriver answers each query with the result registered for it.
type MockDriver struct {
	mu       sync.Mutex
	Results  map[string]neo4j.EagerResult
	Err      error
	Executed []executedQuery
	Closed   bool
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.Results[query], nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	m.Closed = true
	return nil
}

func (m *MockDriver) last() executedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Executed[len(m.Executed)-1]
}

func records(keys []string, rows ...[]any) neo4j.EagerResult {
	res := neo4j.EagerResult{Keys: keys}
	for _, vals := range rows {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: vals})
	}
	return res
}
