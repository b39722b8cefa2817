package users

import (
	"context"
	"testing"

	"github.com/angelmondragon/peerlink-backend/internal/repo/repotest"
	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRepositoryFindByID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(repotest.Open(t))

	user := &models.User{DisplayName: "ada"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", found.DisplayName)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)
	repo := NewRepository(db)

	var created uuid.UUID
	err := db.Transaction(func(tx *gorm.DB) error {
		user := &models.User{DisplayName: "grace"}
		if err := repo.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		created = user.ID
		return gorm.ErrInvalidTransaction
	})
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)

	_, err = repo.FindByID(ctx, created)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
