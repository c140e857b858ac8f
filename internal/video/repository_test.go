package video

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"viewsphere/internal/errs"
)

func newRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewRepository(mock), mock
}

func videoRows(ids ...string) *pgxmock.Rows {
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "owner_id", "title", "description", "video_url", "thumbnail",
		"duration", "views", "is_published", "created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "owner-1", "Title "+id, "desc", "https://cdn/v/"+id, "", 12.5, int64(0), true, now, now)
	}
	return rows
}

func TestRepository_ListPublished(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectQuery(`FROM videos WHERE is_published ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(videoRows("v-1", "v-2"))

	videos, err := repo.ListPublished(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	require.Equal(t, "v-1", videos[0].ID)

	mock.ExpectQuery(`FROM videos WHERE is_published`).
		WithArgs(10, 20).
		WillReturnRows(videoRows())
	videos, err = repo.ListPublished(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Empty(t, videos)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_AssignsID(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	v := &Video{
		OwnerID:  "owner-1",
		Title:    "First upload",
		VideoURL: "https://cdn/v/raw",
		Duration: 42.5,
	}

	mock.ExpectExec(`INSERT INTO videos`).
		WithArgs(pgxmock.AnyArg(), v.OwnerID, v.Title, v.Description, v.VideoURL, v.Thumbnail,
			v.Duration, v.IsPublished, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), v))
	require.NotEmpty(t, v.ID)
	require.False(t, v.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Update_OwnerScoped(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	published := true
	input := UpdateInput{Title: "Renamed", IsPublished: &published}

	mock.ExpectQuery(`UPDATE videos SET title = COALESCE`).
		WithArgs("v-1", "owner-1", "Renamed", "", &published, pgxmock.AnyArg()).
		WillReturnRows(videoRows("v-1"))
	v, err := repo.Update(context.Background(), "v-1", "owner-1", input)
	require.NoError(t, err)
	require.Equal(t, "v-1", v.ID)

	// Someone else's video never matches the WHERE clause.
	mock.ExpectQuery(`UPDATE videos SET title = COALESCE`).
		WithArgs("v-1", "intruder", "Renamed", "", &published, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Update(context.Background(), "v-1", "intruder", input)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM videos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("v-1", "owner-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "v-1", "owner-1"))

	mock.ExpectExec(`DELETE FROM videos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("v-1", "intruder").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := repo.Delete(context.Background(), "v-1", "intruder")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
