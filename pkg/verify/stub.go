package verify

import "context"

// Stub is a fixed-answer oracle for development and tests.
type Stub struct {
	Approve bool
	Err     error
}

func (s *Stub) Verify(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Approve {
		return &Result{Approved: true, Details: "stub approved"}, nil
	}
	return &Result{Approved: false, Details: "stub rejected"}, nil
}
