package repository

import (
	"database/sql/driver"
	"testing"

	"devsocial/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arrayValue(t *testing.T, v interface{}) driver.Value {
	t.Helper()
	valuer, ok := v.(driver.Valuer)
	require.True(t, ok, "%T is not a driver.Valuer", v)
	out, err := valuer.Value()
	require.NoError(t, err)
	return out
}

func TestWhereEmpty(t *testing.T) {
	w := &where{}
	assert.Empty(t, w.String())
	assert.Empty(t, w.args)
}

func TestPostFilterPublicListing(t *testing.T) {
	w := &where{}
	w.postFilter(PostFilter{
		Visibilities: []models.Visibility{models.VisibilityPublic},
		Kind:         models.KindAchievement,
		Tags:         []string{"go"},
		AuthorID:     9,
	})

	assert.Equal(t,
		"WHERE p.is_active AND p.visibility = ANY($1) AND p.type = $2 AND p.tags && $3 AND p.author_id = $4",
		w.String())
	require.Len(t, w.args, 4)
	assert.Equal(t, `{"public"}`, arrayValue(t, w.args[0]))
	assert.Equal(t, "achievement", w.args[1])
	assert.Equal(t, `{"go"}`, arrayValue(t, w.args[2]))
	assert.Equal(t, int64(9), w.args[3])
}

func TestPostFilterPersonalFeed(t *testing.T) {
	w := &where{}
	w.postFilter(PostFilter{Personal: &PersonalScope{ViewerID: 2, Following: []int64{1, 3}}})

	assert.Equal(t,
		"WHERE p.is_active AND (p.author_id = $1 OR (p.author_id = ANY($2) AND p.visibility = ANY($3)))",
		w.String())
	require.Len(t, w.args, 3)
	assert.Equal(t, int64(2), w.args[0])
	assert.Equal(t, "{1,3}", arrayValue(t, w.args[1]))
	assert.Equal(t, `{"public","followers"}`, arrayValue(t, w.args[2]))
}

func TestPostFilterPersonalFeedFollowingNobody(t *testing.T) {
	w := &where{}
	w.postFilter(PostFilter{Personal: &PersonalScope{ViewerID: 2}})

	require.Len(t, w.args, 3)
	assert.Equal(t, "{}", arrayValue(t, w.args[1]), "nil following set must not render as NULL")
}

func TestPlaceholdersContinueAfterSelect(t *testing.T) {
	w := &where{}
	assert.Equal(t, "$1", w.arg(int64(5)))
	w.postFilter(PostFilter{AuthorID: 7})
	assert.Equal(t, "WHERE p.is_active AND p.author_id = $2", w.String())
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "ORDER BY p.created_at DESC, p.id DESC", orderBy(SortRecent))
	assert.Equal(t, "ORDER BY p.is_pinned DESC, p.created_at DESC, p.id DESC", orderBy(SortRanked))
}
