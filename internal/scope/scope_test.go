package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_DefaultNaming(t *testing.T) {
	private := New("alice", VisibilityPrivate)
	shared := New("acme", VisibilityShared)

	assert.Equal(t, "user_alice_chunks", private.Collection())
	assert.Equal(t, "tenant_acme_chunks", shared.Collection())
}

func TestCollection_ExplicitOverride(t *testing.T) {
	id := New("alice", VisibilityPrivate).WithCollection("Research-Papers")
	assert.Equal(t, "research_papers", id.Collection())
}

func TestCollection_SanitizesOwnerID(t *testing.T) {
	id := New("Alice Smith@example.com", VisibilityPrivate)
	assert.Equal(t, "user_alice_smith_example_com_chunks", id.Collection())
}

func TestCollection_IngestAndSearchAgree(t *testing.T) {
	// The same identifier must resolve identically wherever it is used.
	a := New("bob", VisibilityShared)
	b := New("bob", VisibilityShared)
	assert.Equal(t, a.Collection(), b.Collection())
}

func TestStoragePrefix(t *testing.T) {
	id := New("alice", VisibilityPrivate)
	assert.Equal(t, "user_alice_chunks/documents/doc-42", id.StoragePrefix("doc-42"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, New("alice", VisibilityPrivate).Validate())
	assert.Error(t, New("", VisibilityPrivate).Validate())
	assert.Error(t, Identifier{OwnerID: "x", Visibility: "public"}.Validate())
}
