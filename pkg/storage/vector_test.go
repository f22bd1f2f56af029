package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/ltm-go/pkg/storage"
)

func TestTableName(t *testing.T) {
	assert.Equal(t, "ltm_demo", storage.TableName("demo", 63))
	assert.Equal(t, "ltm_collections", storage.TableName("collections", 63))

	registry := storage.TableName("_registry", 63)
	assert.NotEqual(t, storage.RegistryTable, registry)
	assert.Contains(t, registry, storage.RegistryTable+"_")

	mixed := storage.TableName("Demo", 63)
	assert.NotEqual(t, storage.TableName("demo", 63), mixed)
	assert.Regexp(t, `^ltm_demo_[0-9a-f]{8}$`, mixed)

	long := storage.TableName("a_very_long_collection_name_that_keeps_going_past_the_limit", 32)
	assert.Len(t, long, 32)
}
