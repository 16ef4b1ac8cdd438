package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"bada/internal/entity"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, language.Russian, Match("ru_RU.UTF-8"))
	assert.Equal(t, language.Russian, Match("ru"))
	assert.Equal(t, language.English, Match("en-GB"))
	assert.Equal(t, language.English, Match("C"))
	assert.Equal(t, language.English, Match(""))
}

func TestBundlesShareKeys(t *testing.T) {
	en, err := readBundle(language.English)
	require.NoError(t, err)
	ru, err := readBundle(language.Russian)
	require.NoError(t, err)

	for key := range en {
		_, ok := ru[key]
		assert.True(t, ok, "ru bundle misses %q", key)
	}
	assert.Len(t, ru, len(en))
}

func TestResolve(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	assert.Equal(t, "Cancel", b.T("Common.cancelTitle"))
	assert.Equal(t, "No.such.key", b.T("No.such.key"))
	assert.Equal(t, `Delete task "Report"?`, b.Tf("Task.removeConfirmationTitle", "Report"))

	ru, err := Load("ru_RU.UTF-8")
	require.NoError(t, err)
	assert.Equal(t, language.Russian, ru.Language())
	assert.Equal(t, "Отмена", ru.T("Common.cancelTitle"))
}

func TestKindTitle(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	assert.Equal(t, "New task", b.KindTitle(entity.KindTask, "create"))
	assert.Equal(t, "Rename category", b.KindTitle(entity.KindCategory, "update"))
}

func TestKindName(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	assert.Equal(t, "task", b.KindName(entity.KindTask))
	assert.Equal(t, "category", b.KindName(entity.KindCategory))

	var zero entity.Kind
	assert.Equal(t, "Kind(0)", b.KindName(zero))

	ru, err := Load("ru")
	require.NoError(t, err)
	assert.Equal(t, "категория", ru.KindName(entity.KindCategory))
}
