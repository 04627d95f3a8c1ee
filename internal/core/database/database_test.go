package db

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSNWithoutCertIsUnchanged(t *testing.T) {
	dsn, err := buildDSN("postgres://u:p@localhost:5432/db?sslmode=disable", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", dsn)
}

func TestBuildDSNWithCertVerifiesCA(t *testing.T) {
	cert := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))

	dsn, err := buildDSN("postgres://u:p@db.example.com:5432/app?sslmode=disable", cert)
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "verify-ca", u.Query().Get("sslmode"))
	assert.Equal(t, cert, u.Query().Get("sslrootcert"))
	assert.Equal(t, "db.example.com:5432", u.Host)
}

func TestBuildDSNMissingCert(t *testing.T) {
	_, err := buildDSN("postgres://localhost/db", filepath.Join(t.TempDir(), "nope.pem"))
	require.Error(t, err)
}

func TestVectorTableName(t *testing.T) {
	name := vectorTable("acme")
	assert.Regexp(t, `^tenant_acme_[0-9a-f]{16}_vectors$`, name)
	assert.Equal(t, name, vectorTable("acme"))
	assert.Equal(t, `"`+name+`"`, quotedTable("acme"))

	assert.Regexp(t, `^tenant_x_drop_table_y_[0-9a-f]{16}_vectors$`, vectorTable("x; DROP TABLE y"))
	assert.Regexp(t, `^tenant_[0-9a-f]{16}_vectors$`, vectorTable("日本"))
}

func TestVectorTableNameIsDistinctPerTenant(t *testing.T) {
	long := strings.Repeat("tenant-with-a-very-long-identifier-", 3)
	ids := []string{
		"Acme-Corp", "acme_corp", "acme.corp", "ACME CORP", "acme-corp",
		"élan", "ülan", "", "_", "-",
		long + "a", long + "b",
	}
	seen := map[string]string{}
	for _, id := range ids {
		name := vectorTable(id)
		assert.LessOrEqual(t, len(name), 63, id)
		if prev, ok := seen[name]; ok {
			t.Fatalf("tenants %q and %q share table %s", prev, id, name)
		}
		seen[name] = id
	}
}

func TestNewPgVectorStoreRejectsZeroDimension(t *testing.T) {
	_, err := NewPgVectorStore(nil, 0, nil)
	require.Error(t, err)
}

func TestJSONListEncodesNilAsEmptyArray(t *testing.T) {
	var none []string
	got, err := jsonList(none)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)

	got, err = jsonList([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, got)
}
