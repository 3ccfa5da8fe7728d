package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestProjectRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewProjectRepository(db)

	created := insertProject(t, db, "p1", 3)

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, 3, got.ExpectedFileCount)
	require.Equal(t, 0, got.ProcessedFileCount)
	require.Equal(t, project.StatusCreated, got.Status)
	require.Empty(t, got.ErrorMessage)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProjectRepository_List(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewProjectRepository(db)

	insertProject(t, db, "p1", 2)
	time.Sleep(5 * time.Millisecond)
	insertProject(t, db, "p2", 1)
	insertFile(t, db, "p1", "f1", "a.py")

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "p2", list[0].ID)
	require.Equal(t, "p1", list[1].ID)
	require.Equal(t, 1, list[1].UploadedFileCount)
	require.Equal(t, 0, list[1].IssueCount)
}

func TestProjectRepository_IncrementProcessed(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewProjectRepository(db)
	insertProject(t, db, "p1", 2)

	n, err := repo.IncrementProcessed(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = repo.IncrementProcessed(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = repo.IncrementProcessed(ctx, "p1")
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestProjectRepository_UpdateStatus(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewProjectRepository(db)
	insertProject(t, db, "p1", 1)

	require.NoError(t, repo.UpdateStatus(ctx, "p1", project.StatusFailed, "provider timeout"))
	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, project.StatusFailed, got.Status)
	require.Equal(t, "provider timeout", got.ErrorMessage)

	require.ErrorIs(t, repo.UpdateStatus(ctx, "missing", project.StatusFailed, ""), repository.ErrNotFound)
}

func TestProjectRepository_CountFailedFiles(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 2)
	insertFile(t, db, "p1", "f1", "a.py")
	insertFile(t, db, "p1", "f2", "b.py")

	files := NewFileRepository(db)
	require.NoError(t, files.UpdateStatus(ctx, "f1", file.StatusPending, file.StatusAnalyzing))
	require.NoError(t, files.UpdateStatus(ctx, "f1", file.StatusAnalyzing, file.StatusFailed))

	n, err := NewProjectRepository(db).CountFailedFiles(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
