package skistore

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"polygon not valid", eris.New(`ST_Contains: Polygon is not valid`), true},
		{"invalid loop", eris.New(`Invalid loop in polygon 3`), true},
		{"loop not closed", eris.New(`Loop not closed at vertex 0`), true},
		{"wrapped", eris.Wrap(eris.New("Loop not closed"), "skistore: nearby"), true},
		{"unrelated", eris.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRecoverable(tc.err))
		})
	}
}
