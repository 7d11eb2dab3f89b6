package repository

import (
	"testing"

	"entgo.io/ent/schema/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractsTable(t *testing.T) {
	tbl, err := contractsTable()
	require.NoError(t, err)

	assert.Equal(t, "contracts", tbl.Name)
	require.Len(t, tbl.PrimaryKey, 1)
	assert.Equal(t, "id", tbl.PrimaryKey[0].Name)

	names := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, contractColumns, names, "row mapping follows the declared column order")

	for _, c := range tbl.Columns {
		switch c.Name {
		case "raw_text", "processed_at", "score_report":
			assert.True(t, c.Nullable, c.Name)
		case "status":
			assert.Equal(t, field.TypeString, c.Type)
			assert.Equal(t, "pending", c.Default)
		}
	}
	require.Len(t, tbl.Indexes, 2)
	assert.Equal(t, "contract_status_updated_at", tbl.Indexes[0].Name)
}

func TestFieldValidators(t *testing.T) {
	v := fieldValidators()
	require.NotEmpty(t, v["status"])
	for _, fn := range v["status"] {
		assert.NoError(t, fn("completed"))
	}
	var failed bool
	for _, fn := range v["stage"] {
		failed = failed || fn("shredding") != nil
	}
	assert.True(t, failed)
}
