package extract

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockExtractor is an Extractor for testing.
type MockExtractor struct {
	// Results maps page numbers to canned results. Pages without an entry
	// get a generic result.
	Results map[int]*PageResult

	// FailPages lists page numbers that should fail with a PageError.
	FailPages map[int]bool

	// Connected controls TestConnection.
	Connected bool

	// Calls records every ExtractPage invocation in order. Safe only for
	// single-goroutine use, which is how the pipeline drives extraction.
	Calls []MockCall

	callCount atomic.Int64
}

// MockCall captures the arguments of one ExtractPage call.
type MockCall struct {
	Page          int
	PriorFragment string
}

// NewMockExtractor creates a mock with sensible defaults.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		Results:   make(map[int]*PageResult),
		FailPages: make(map[int]bool),
		Connected: true,
	}
}

// ExtractPage returns the canned result for pageNum.
func (m *MockExtractor) ExtractPage(ctx context.Context, image []byte, priorFragment string, pageNum int) (*PageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.callCount.Add(1)
	m.Calls = append(m.Calls, MockCall{Page: pageNum, PriorFragment: priorFragment})

	if m.FailPages[pageNum] {
		return nil, &PageError{Page: pageNum, Err: fmt.Errorf("mock failure")}
	}

	if r, ok := m.Results[pageNum]; ok {
		// Copy so callers can't mutate the canned result.
		cp := *r
		cp.PageNumber = pageNum
		return &cp, nil
	}

	return &PageResult{
		PageNumber: pageNum,
		Markdown:   fmt.Sprintf("Page %d content.", pageNum),
	}, nil
}

// TestConnection reports the configured connectivity.
func (m *MockExtractor) TestConnection(ctx context.Context) bool {
	return m.Connected
}

// CallCount returns how many ExtractPage calls were made.
func (m *MockExtractor) CallCount() int {
	return int(m.callCount.Load())
}
