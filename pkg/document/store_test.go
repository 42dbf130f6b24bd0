package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolabhq/tilepad/pkg/locks"
	"github.com/kolabhq/tilepad/pkg/model"
)

func intPtr(v int) *int { return &v }

func TestCreateAndGetDocument(t *testing.T) {
	store := NewStore(nil)
	doc := store.CreateDocument("doc1", map[string]any{"title": "hi"}, "alice")
	assert.Equal(t, 0, doc.Revision)

	got, ok := store.GetDocument("doc1")
	require.True(t, ok)
	assert.Equal(t, "hi", got.Content.(map[string]any)["title"])
}

func TestGetDocumentUnknownReturnsFalse(t *testing.T) {
	store := NewStore(nil)
	_, ok := store.GetDocument("ghost")
	assert.False(t, ok)
}

func TestApplyOperationUnknownDocument(t *testing.T) {
	store := NewStore(nil)
	_, err := store.ApplyOperation("ghost", model.Operation{Type: model.OpUpdate, Path: "a", Value: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApplyOperationBumpsRevisionAndLogsOp(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{}, "alice")

	result, err := store.ApplyOperation("doc1", model.Operation{
		ClientID: "c1", UserID: "alice", Type: model.OpUpdate, Path: "title", Value: "new title",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Revision)
	assert.NotEmpty(t, result.Operation.ID)

	history, err := store.GetOperationHistory("doc1", 0, nil)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyOperationRejectsUnknownType(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{}, "alice")

	_, err := store.ApplyOperation("doc1", model.Operation{Type: "bogus", Path: "a"})
	assert.ErrorIs(t, err, model.ErrMutate)
}

func TestApplyOperationRejectsEmptyPath(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{}, "alice")

	_, err := store.ApplyOperation("doc1", model.Operation{Type: model.OpUpdate, Path: ""})
	assert.ErrorIs(t, err, model.ErrPath)
}

func TestApplyOperationRespectsLock(t *testing.T) {
	lockTable := locks.New()
	store := NewStore(lockTable)
	store.CreateDocument("doc1", map[string]any{}, "alice")

	lockTable.Acquire(lockKey("doc1", "title"), "bob", 0)
	lockTable.Acquire(lockKey("doc1", "title"), "bob", 1e9)

	_, err := store.ApplyOperation("doc1", model.Operation{UserID: "alice", Type: model.OpUpdate, Path: "title", Value: "x"})
	assert.ErrorIs(t, err, model.ErrLocked)

	_, err = store.ApplyOperation("doc1", model.Operation{UserID: "bob", Type: model.OpUpdate, Path: "title", Value: "x"})
	assert.NoError(t, err, "expected lock owner to be allowed to apply")
}

func TestGetOperationHistoryRange(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{}, "alice")
	for i := 0; i < 5; i++ {
		store.ApplyOperation("doc1", model.Operation{UserID: "alice", Type: model.OpUpdate, Path: "n", Value: i})
	}

	to := 3
	ops, err := store.GetOperationHistory("doc1", 1, &to)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestCreateSnapshotCapturesRevisionAndHash(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{"a": 1}, "alice")
	store.ApplyOperation("doc1", model.Operation{UserID: "alice", Type: model.OpUpdate, Path: "a", Value: 2})

	snap, ok := store.CreateSnapshot("doc1", "alice")
	require.True(t, ok)
	assert.Equal(t, 1, snap.Revision)
	assert.Equal(t, 1, snap.Operations)
}

func TestDetectConflictsRequiresBothHashAndRevisionToDiffer(t *testing.T) {
	v1 := model.Snapshot{Hash: "a", Revision: 1}
	v2 := model.Snapshot{Hash: "a", Revision: 2}
	assert.False(t, DetectConflicts(v1, v2), "expected matching hash to rule out a conflict regardless of revision")

	v3 := model.Snapshot{Hash: "b", Revision: 1}
	assert.False(t, DetectConflicts(v1, v3), "expected matching revision to rule out a conflict regardless of hash")

	v4 := model.Snapshot{Hash: "b", Revision: 2}
	assert.True(t, DetectConflicts(v1, v4), "expected differing hash and revision to be a conflict")
}

func TestMergeVersionsPicksLatestWriter(t *testing.T) {
	now := model.Snapshot{DocumentID: "doc1", Revision: 3, Content: "new", CreatedBy: "bob"}
	older := model.Snapshot{DocumentID: "doc1", Revision: 2, Content: "old", CreatedBy: "alice"}
	older.CreatedAt = now.CreatedAt.Add(-1)

	merged := MergeVersions(older, now)
	assert.Equal(t, "bob", merged.CreatedBy)
	assert.Equal(t, "new", merged.Content)
	assert.Equal(t, 4, merged.Revision)
}

func TestGetDocumentStatsCountsDistinctUsers(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{}, "alice")
	store.ApplyOperation("doc1", model.Operation{UserID: "alice", Type: model.OpUpdate, Path: "a", Value: 1})

	sessions := []model.EditSession{
		{DocumentID: "doc1", UserID: "alice"},
		{DocumentID: "doc1", UserID: "bob"},
		{DocumentID: "other", UserID: "carol"},
	}

	stats, err := store.GetDocumentStats("doc1", sessions)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DistinctActiveUsers)
	assert.Equal(t, 1, stats.Revision)
	assert.Equal(t, 1, stats.OperationCount)
}

func TestListDocumentIDs(t *testing.T) {
	store := NewStore(nil)
	store.CreateDocument("doc1", map[string]any{}, "alice")
	store.CreateDocument("doc2", map[string]any{}, "bob")

	ids := store.ListDocumentIDs()
	assert.Len(t, ids, 2)
}
