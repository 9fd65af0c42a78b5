package common

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		network bool
	}{
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.network, apperror.IsNetwork(Classify(tt.err)))
		})
	}
}

func TestClassify_KeepsAppErrors(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Same(t, apperror.ErrAlertNotFound, Classify(apperror.ErrAlertNotFound))
}
