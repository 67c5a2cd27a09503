package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldAccents(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Autorización", want: "Autorizacion"},
		{in: "CAFÉ BRITT", want: "CAFE BRITT"},
		{in: "Ñandú", want: "Nandu"},
		{in: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldAccents(tt.in))
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "UBER EATS SJO", CollapseSpace("  UBER\tEATS \n SJO "))
}
