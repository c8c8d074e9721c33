// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("HTTP %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"validation", &ArgumentValidationError{Tool: "x"}, ClassValidation},
		{"transient", Transient("op", errors.New("boom")), ClassTransient},
		{"fatal", Fatal(KindAuth, "op", errors.New("denied")), ClassFatal},
		{"wrapped transient", fmt.Errorf("outer: %w", Transient("op", errors.New("boom"))), ClassTransient},
		{"429", statusErr(429), ClassTransient},
		{"503", statusErr(503), ClassTransient},
		{"404", statusErr(404), ClassFatal},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), ClassCanceled},
		{"plain", errors.New("weird"), ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, KindForStatus(403))
	assert.Equal(t, KindNotFound, KindForStatus(404))
	assert.Equal(t, KindInvalid, KindForStatus(400))
}
