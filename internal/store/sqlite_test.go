package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylr/migrate/internal/batch"
	"github.com/stylr/migrate/internal/conf"
)

func openTestStore(t *testing.T) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "target.db")

	ds := New(settings, nil)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestSQLiteOpenAndPing(t *testing.T) {
	ds := openTestStore(t)
	assert.NoError(t, ds.Ping(context.Background()))
}

func TestSQLiteOpenRejectsEmptyPath(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true

	ds := New(settings, nil)
	assert.Error(t, ds.Open())
}

func TestBatchWriterInsertsUsers(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	users := []User{
		{ID: "u1", Email: "a@example.com", Role: "buyer"},
		{ID: "u2", Email: "b@example.com", Role: "stylist"},
		{ID: "u3", Email: "c@example.com", Role: "buyer"},
	}

	writer := NewBatchWriter[User](ds.DB(), batch.GroupedOptions{
		Options:              batch.Options{BatchSize: 2},
		FallbackToIndividual: true,
	}, nil)

	result := writer.Write(ctx, users)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Zero(t, result.ErrorCount)

	count, err := ds.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestBatchWriterFallbackIsolatesDuplicateEmail(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	writer := NewBatchWriter[User](ds.DB(), batch.GroupedOptions{
		Options:              batch.Options{BatchSize: 10},
		FallbackToIndividual: true,
	}, nil)

	// u2 violates the unique email index; the window must fall back to
	// per-item inserts so u1 and u3 still land.
	result := writer.Write(ctx, []User{
		{ID: "u1", Email: "dup@example.com", Role: "buyer"},
		{ID: "u2", Email: "dup@example.com", Role: "stylist"},
		{ID: "u3", Email: "ok@example.com", Role: "buyer"},
	})

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	count, err := ds.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUserExistsByEmail(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, ds.DB().Create(&User{ID: "u1", Email: "present@example.com"}).Error)

	exists, err := ds.UserExistsByEmail(ctx, "present@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ds.UserExistsByEmail(ctx, "absent@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateUserByID(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, ds.DB().Create(&User{ID: "u1", Email: "a@example.com"}).Error)
	require.NoError(t, ds.UpdateUserByID(ctx, "u1", map[string]any{"stripe_customer_id": "cus_42"}))

	var u User
	require.NoError(t, ds.DB().First(&u, "id = ?", "u1").Error)
	assert.Equal(t, "cus_42", u.StripeCustomerID)
}

func TestServicePreviewCounts(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	records := []MediaRecord{
		{ID: "m1", MediaType: MediaTypeServiceImage, StoragePath: "services/s/1/a.jpg", ServiceID: "svc1", IsPreview: true},
		{ID: "m2", MediaType: MediaTypeServiceImage, StoragePath: "services/s/1/b.jpg", ServiceID: "svc1", IsPreview: false},
		{ID: "m3", MediaType: MediaTypeServiceImage, StoragePath: "services/s/2/a.jpg", ServiceID: "svc2", IsPreview: true},
		{ID: "m4", MediaType: MediaTypeServiceImage, StoragePath: "services/s/2/b.jpg", ServiceID: "svc2", IsPreview: true},
		{ID: "m5", MediaType: MediaTypeAvatar, StoragePath: "avatars/u1.jpg", UserID: "u1", IsPreview: true},
	}
	require.NoError(t, ds.DB().Create(&records).Error)

	counts, err := ds.ServicePreviewCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"svc1": 1, "svc2": 2}, counts)
}

func TestCountMediaRecordsByType(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	records := []MediaRecord{
		{ID: "m1", MediaType: MediaTypeAvatar, StoragePath: "avatars/u1.jpg"},
		{ID: "m2", MediaType: MediaTypeChatImage, StoragePath: "chat/c1/m1.png"},
		{ID: "m3", MediaType: MediaTypeChatImage, StoragePath: "chat/c1/m2.png"},
	}
	require.NoError(t, ds.DB().Create(&records).Error)

	total, err := ds.CountMediaRecords(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	chat, err := ds.CountMediaRecords(ctx, MediaTypeChatImage)
	require.NoError(t, err)
	assert.EqualValues(t, 2, chat)
}

func TestMediaStoragePathsHonorsLimit(t *testing.T) {
	ds := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"m1", "m2", "m3"} {
		rec := MediaRecord{
			ID:          id,
			MediaType:   MediaTypeAvatar,
			StoragePath: "avatars/" + id + ".jpg",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, ds.DB().Create(&rec).Error)
	}

	paths, err := ds.MediaStoragePaths(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"avatars/m1.jpg", "avatars/m2.jpg"}, paths)
}
