package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores the package-level flag state between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	orig := struct {
		owner      string
		shared     bool
		collection string
	}{ownerID, sharedScope, explicitColl}
	t.Cleanup(func() {
		ownerID = orig.owner
		sharedScope = orig.shared
		explicitColl = orig.collection
	})
}

func TestResolveScope_RequiresOwner(t *testing.T) {
	resetFlags(t)
	ownerID = ""

	_, err := resolveScope()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--owner")
}

func TestResolveScope_PrivateDefault(t *testing.T) {
	resetFlags(t)
	ownerID = "Alice"
	sharedScope = false
	explicitColl = ""

	sc, err := resolveScope()
	require.NoError(t, err)
	assert.Equal(t, "user_alice_chunks", sc.Collection())
}

func TestResolveScope_Shared(t *testing.T) {
	resetFlags(t)
	ownerID = "acme"
	sharedScope = true
	explicitColl = ""

	sc, err := resolveScope()
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme_chunks", sc.Collection())
}

func TestResolveScope_ExplicitCollection(t *testing.T) {
	resetFlags(t)
	ownerID = "alice"
	explicitColl = "Shared-Legal"

	sc, err := resolveScope()
	require.NoError(t, err)
	assert.Equal(t, "shared_legal", sc.Collection())
}

func TestDefaultDocumentID(t *testing.T) {
	id1 := defaultDocumentID("/tmp/Annual Report.pdf", []byte("content-a"))
	id2 := defaultDocumentID("/tmp/Annual Report.pdf", []byte("content-b"))
	id3 := defaultDocumentID("/other/Annual Report.pdf", []byte("content-a"))

	assert.Contains(t, id1, "annual-report-")
	assert.NotEqual(t, id1, id2, "different content, different ID")
	assert.Equal(t, id1, id3, "same name and content, same ID regardless of directory")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("short   text", 160))

	long := snippet("word word word word word", 10)
	assert.Len(t, long, 13) // 10 chars + "..."
}

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ingest", "search", "documents", "watch", "stats", "config", "doctor", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
