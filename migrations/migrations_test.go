package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDeclaresConstraints(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.Equal(t, []string{"0001_init.sql"}, names)

	body, err := files.ReadFile(names[0])
	require.NoError(t, err)
	sql := string(body)
	for _, want := range []string{
		"CONSTRAINT orders_order_number_key UNIQUE (order_number)",
		"ON categories (lower(name))",
		"PRIMARY KEY (key, module)",
		"CONSTRAINT products_category_id_fkey REFERENCES categories (id) ON DELETE RESTRICT",
		"CREATE TABLE IF NOT EXISTS audit_logs",
	} {
		assert.True(t, strings.Contains(sql, want), want)
	}
}
