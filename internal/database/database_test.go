package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDSN(t *testing.T) {
	tests := []struct {
		name       string
		dsn        string
		wantMaster string
		wantName   string
		wantOK     bool
	}{
		{
			name:       "url with database",
			dsn:        "postgres://u:p@localhost:5432/pianostore?sslmode=disable",
			wantMaster: "postgres://u:p@localhost:5432/postgres?sslmode=disable",
			wantName:   "pianostore",
			wantOK:     true,
		},
		{
			name:   "maintenance database",
			dsn:    "postgres://u:p@localhost:5432/postgres",
			wantOK: false,
		},
		{
			name:   "keyword dsn",
			dsn:    "host=localhost dbname=pianostore",
			wantOK: false,
		},
		{
			name:   "no database",
			dsn:    "postgresql://localhost:5432",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			master, name, ok := splitDSN(tt.dsn)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMaster, master)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
