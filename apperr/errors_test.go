package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdapterFailureCoversValidation(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsAdapterFailure(&AdapterError{Adapter: "refiner", Err: base}))
	assert.True(t, IsAdapterFailure(fmt.Errorf("wrapped: %w", &ValidationError{Adapter: "refiner", Err: base})))
	assert.False(t, IsAdapterFailure(base))
}

func TestUnwrapChains(t *testing.T) {
	base := errors.New("dial tcp: timeout")
	err := &InfrastructureError{Stage: "classify", Err: &AdapterError{Adapter: "classifier", Err: base}}

	assert.ErrorIs(t, err, base)
	var ae *AdapterError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, "classifier", ae.Adapter)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"input", &InputError{Field: "text", Message: "required"}, false},
		{"ownership", &OwnershipError{RecordID: "r1", Requester: "ngo-2"}, false},
		{"wrapped ownership", fmt.Errorf("delete: %w", &OwnershipError{RecordID: "r1"}), false},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), false},
		{"adapter", &AdapterError{Adapter: "geocoder", Err: errors.New("503")}, true},
		{"conflict", ErrConflict, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "invalid input on field 'text': required", (&InputError{Field: "text", Message: "required"}).Error())
	assert.Contains(t, (&OwnershipError{RecordID: "r1", Requester: "ngo-2"}).Error(), `"ngo-2"`)
}
