package migrations

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Migrations(t *testing.T) {
	m := &Migrator{}
	migrations := m.GetMigrations()

	t.Run("Names are unique and ordered", func(t *testing.T) {
		seen := map[string]bool{}
		prev := ""
		for _, migration := range migrations {
			name := migration.GetName()
			assert.False(t, seen[name], "duplicate migration %s", name)
			seen[name] = true
			assert.Greater(t, name, prev)
			prev = name
		}
	})
	t.Run("Names carry a timestamp prefix", func(t *testing.T) {
		re := regexp.MustCompile(`^\d{12}_[a-zA-Z]+$`)
		for _, migration := range migrations {
			assert.Regexp(t, re, migration.GetName())
		}
	})
}
