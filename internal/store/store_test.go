package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancestore/ancestore/internal/config"
	"github.com/ancestore/ancestore/internal/rewrite"
	"github.com/ancestore/ancestore/internal/schema"
	"github.com/ancestore/ancestore/internal/serial"
	"github.com/ancestore/ancestore/internal/txn"
)

// openTenant opens one tenant in the given directory's shared database.
func openTenant(t *testing.T, dir, prefix string) *Store {
	t.Helper()

	cfg := config.Config{
		Directory:  dir,
		Mode:       config.ModeShared,
		SharedName: "shared.db",
		Prefix:     prefix,
	}
	st, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	st.AttachUndoLog(&txn.MemoryUndoLog{})
	return st
}

// commitPerson adds one person document inside its own transaction.
func commitPerson(t *testing.T, st *Store, doc string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.BeginTransaction(ctx))
	require.NoError(t, st.Person().Commit(ctx, doc))
	require.NoError(t, st.CommitTransaction(ctx))
}

func TestRoundTrip_RawBytesSurvive(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	// Keys deliberately not alphabetical; the stored bytes must come back
	// exactly as written.
	doc := `{"handle": "P1", "gramps_id": "I0001", "private": 1, "gender": 1, "primary_name": {"first_name": "Jane", "surname_list": [{"surname": "Doe"}]}}`

	require.NoError(t, st.BeginTransaction(ctx))
	require.NoError(t, st.Person().Add(ctx, doc))
	require.NoError(t, st.CommitTransaction(ctx))

	got, found, err := st.Person().Get(ctx, "P1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc, string(got.Raw()))

	// The field view carries the documented boolean coercion.
	private, ok := got.Field("private")
	require.True(t, ok)
	assert.Equal(t, true, private)
}

func TestGet_MissingHandleIsDefinedAbsence(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")

	doc, found, err := st.Person().Get(context.Background(), "never-written")
	require.NoError(t, err, "a missing handle is not an error")
	assert.False(t, found)
	assert.True(t, doc.IsZero())
}

func TestMutationsRequireTransaction(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	err := st.Person().Add(ctx, `{"handle": "P1"}`)
	require.Error(t, err)
	assert.True(t, txn.IsStateError(err))

	err = st.Person().Remove(ctx, "P1")
	require.Error(t, err)
	assert.True(t, txn.IsStateError(err))
}

func TestTenantIsolation(t *testing.T) {
	dir := t.TempDir()
	alpha := openTenant(t, dir, "alpha")
	beta := openTenant(t, dir, "beta")

	commitPerson(t, alpha, `{"handle": "P1", "primary_name": {"first_name": "Jane", "surname_list": [{"surname": "Doe"}]}}`)
	commitPerson(t, beta, `{"handle": "P1", "primary_name": {"first_name": "John", "surname_list": [{"surname": "Roe"}]}}`)

	ctx := context.Background()
	fromAlpha, found, err := alpha.Person().Get(ctx, "P1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"Jane"}, fromAlpha.Strings("$.primary_name.first_name"))

	fromBeta, found, err := beta.Person().Get(ctx, "P1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"John"}, fromBeta.Strings("$.primary_name.first_name"))

	n, err := alpha.Person().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the other tenant's row must not be visible")
}

func TestTypeMismatch_NoPartialRow(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	require.NoError(t, st.BeginTransaction(ctx))
	err := st.Person().Add(ctx, `{"handle": "P1", "private": "maybe"}`)
	require.Error(t, err)
	assert.True(t, serial.IsTypeMismatch(err))

	// The coercion failed before any statement ran; the scope is intact
	// and commits cleanly with nothing in it.
	require.NoError(t, st.CommitTransaction(ctx))

	found, err := st.Person().Has(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAdd_DuplicateHandleAbortsScope(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	require.NoError(t, st.BeginTransaction(ctx))
	require.NoError(t, st.Person().Add(ctx, `{"handle": "P1"}`))
	err := st.Person().Add(ctx, `{"handle": "P1"}`)
	require.Error(t, err)

	// Reads in the poisoned scope are rejected like writes.
	_, _, err = st.Person().Get(ctx, "P1")
	require.Error(t, err)
	assert.True(t, txn.IsStateError(err))

	// The failed insert poisoned the scope; commit rolls everything back.
	err = st.CommitTransaction(ctx)
	require.Error(t, err)
	assert.True(t, txn.IsStateError(err))

	found, err := st.Person().Has(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, found, "first insert must roll back with the scope")
}

func TestCommit_UpsertsAndRecordsUndo(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	undo := &txn.MemoryUndoLog{}
	st.AttachUndoLog(undo)
	ctx := context.Background()

	commitPerson(t, st, `{"handle": "P1", "gramps_id": "I0001"}`)
	commitPerson(t, st, `{"handle": "P1", "gramps_id": "I0002"}`)

	got, found, err := st.Person().Get(ctx, "P1")
	require.NoError(t, err)
	require.True(t, found)
	id, _ := got.Field("gramps_id")
	assert.Equal(t, "I0002", id)

	changes := undo.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, txn.ChangeAdd, changes[0].Kind)
	assert.Equal(t, txn.ChangeUpdate, changes[1].Kind)
	assert.Contains(t, string(changes[1].Old), "I0001")
	assert.Contains(t, string(changes[1].New), "I0002")
}

func TestReferences_RecomputedOnCommit(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	commitPerson(t, st, `{"handle": "P1", "family_list": ["F1"], "event_ref_list": [{"ref": "E1"}]}`)

	links, err := st.Backlinks(ctx, "F1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "P1", links[0].Handle)
	assert.Equal(t, schema.KindPerson, links[0].Kind)

	refs, err := st.References(ctx, "P1", schema.KindPerson)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	// Recommit without the family reference: the edge must disappear.
	commitPerson(t, st, `{"handle": "P1", "event_ref_list": [{"ref": "E1"}]}`)

	links, err = st.Backlinks(ctx, "F1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestRemove_DeletesReferenceEdges(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	commitPerson(t, st, `{"handle": "P1", "family_list": ["F1"]}`)

	require.NoError(t, st.BeginTransaction(ctx))
	require.NoError(t, st.Person().Remove(ctx, "P1"))
	require.NoError(t, st.CommitTransaction(ctx))

	found, err := st.Person().Has(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, found)

	links, err := st.Backlinks(ctx, "F1")
	require.NoError(t, err)
	assert.Empty(t, links, "edges die with the record, in the same transaction")
}

func TestRemove_AbsentHandleIsNoOp(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	require.NoError(t, st.BeginTransaction(ctx))
	require.NoError(t, st.Person().Remove(ctx, "never-written"))
	require.NoError(t, st.CommitTransaction(ctx))
}

func TestSharedTables_CrossTenantLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	alpha := openTenant(t, dir, "alpha")
	beta := openTenant(t, dir, "beta")
	ctx := context.Background()

	require.NoError(t, alpha.SetNameGroup(ctx, "McDonald", "M"))
	require.NoError(t, beta.SetNameGroup(ctx, "McDonald", "Mc"))

	grouping, found, err := alpha.NameGroup(ctx, "McDonald")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Mc", grouping, "the later write wins, visible to every tenant")
}

func TestSharedSurnames_VisibleAcrossTenants(t *testing.T) {
	dir := t.TempDir()
	alpha := openTenant(t, dir, "alpha")
	beta := openTenant(t, dir, "beta")
	ctx := context.Background()

	commitPerson(t, alpha, `{"handle": "P1", "primary_name": {"surname_list": [{"surname": "Doe"}]}}`)

	names, err := beta.Surnames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Doe")
}

func TestNameGroup_DefinedAbsence(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")

	_, found, err := st.NameGroup(context.Background(), "Unseen")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIterate_OrderedByHandle(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	commitPerson(t, st, `{"handle": "P2"}`)
	commitPerson(t, st, `{"handle": "P1"}`)

	handles, err := st.Person().Handles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, handles)

	it, err := st.Person().Iterate(ctx)
	require.NoError(t, err)
	defer it.Close()

	var seen []string
	for it.Next() {
		seen = append(seen, it.Handle())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"P1", "P2"}, seen)
}

func TestQuery_CompatSurfaceIsScoped(t *testing.T) {
	dir := t.TempDir()
	alpha := openTenant(t, dir, "alpha")
	beta := openTenant(t, dir, "beta")
	ctx := context.Background()

	commitPerson(t, alpha, `{"handle": "P1"}`)

	// The raw-SQL surface names bare tables; each tenant sees only its own.
	rows, err := beta.Query(ctx, "SELECT handle FROM person")
	require.NoError(t, err)
	defer rows.Close()
	assert.False(t, rows.Next(), "beta must not see alpha's rows")
	require.NoError(t, rows.Err())
}

func TestExecute_RejectsUnknownTables(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")

	_, err := st.Execute(context.Background(), "DELETE FROM sqlite_master")
	require.Error(t, err)
	assert.True(t, rewrite.IsRejected(err))
}

func TestOf_ValidatesKind(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")

	set, err := st.Of(schema.KindNote)
	require.NoError(t, err)
	assert.Equal(t, schema.KindNote, set.Kind())

	_, err = st.Of("spaceship")
	assert.Error(t, err)
}

func TestBegin_RequiresUndoLog(t *testing.T) {
	cfg := config.Config{
		Directory:  t.TempDir(),
		Mode:       config.ModeShared,
		SharedName: "shared.db",
		Prefix:     "alpha",
	}
	st, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer st.Close()

	err = st.BeginTransaction(context.Background())
	require.Error(t, err)
	assert.True(t, txn.IsStateError(err))
}

func TestUpdateDerivedColumns_NoOpContract(t *testing.T) {
	st := openTenant(t, t.TempDir(), "alpha")
	ctx := context.Background()

	readSurname := func() string {
		t.Helper()
		rows, err := st.Query(ctx, "SELECT surname FROM person WHERE handle = ?", "P1")
		require.NoError(t, err)
		defer rows.Close()
		require.True(t, rows.Next())
		var s string
		require.NoError(t, rows.Scan(&s))
		return s
	}

	commitPerson(t, st, `{"handle": "P1", "primary_name": {"surname_list": [{"surname": "Doe"}]}}`)
	require.NoError(t, st.Person().UpdateDerivedColumns(ctx, "P1"))
	assert.Equal(t, "Doe", readSurname())

	// The externally-imposed column-write step does nothing, yet the
	// derived columns follow every document write on their own.
	commitPerson(t, st, `{"handle": "P1", "primary_name": {"surname_list": [{"surname": "Roe"}]}}`)
	require.NoError(t, st.Person().UpdateDerivedColumns(ctx, "P1"))
	assert.Equal(t, "Roe", readSurname())
}

func TestSeparateMode_NoPrefix(t *testing.T) {
	cfg := config.Config{
		Directory: t.TempDir(),
		Mode:      config.ModeSeparate,
		Prefix:    "alpha",
	}
	st, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer st.Close()
	st.AttachUndoLog(&txn.MemoryUndoLog{})

	commitPerson(t, st, `{"handle": "P1"}`)

	n, err := st.Person().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
