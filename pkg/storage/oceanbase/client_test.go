package oceanbase_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/storage"
	oceanbaseStore "github.com/oceanbase/ltm-go/pkg/storage/oceanbase"
	"github.com/oceanbase/ltm-go/pkg/storage/storagetest"
)

func setupOceanBaseTest(t *testing.T) (storage.VectorStore, func()) {
	// Load .env file from project root
	_ = godotenv.Load(filepath.Join("..", "..", "..", ".env"))

	host := os.Getenv("OCEANBASE_HOST")
	if host == "" {
		t.Skip("Skipping OceanBase test: OCEANBASE_HOST not set")
	}

	portStr := os.Getenv("OCEANBASE_PORT")
	if portStr == "" {
		portStr = "2881"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Skipf("Skipping OceanBase test: invalid OCEANBASE_PORT: %s", portStr)
	}

	user := os.Getenv("OCEANBASE_USER")
	if user == "" {
		user = "root@test"
	}

	dbName := os.Getenv("OCEANBASE_DATABASE")
	if dbName == "" {
		dbName = "ltm_test"
	}

	store, err := oceanbaseStore.NewClient(&oceanbaseStore.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: os.Getenv("OCEANBASE_PASSWORD"),
		DBName:   dbName,
	})
	if err != nil {
		t.Skipf("Skipping OceanBase test: failed to connect: %v", err)
	}
	require.NotNil(t, store)

	return store, func() { _ = store.Close() }
}

func TestOceanBaseClient_Conformance(t *testing.T) {
	storagetest.Run(t, setupOceanBaseTest)
}
