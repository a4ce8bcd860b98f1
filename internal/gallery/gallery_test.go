package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefault(t *testing.T) {
	slides, err := Load("")
	require.NoError(t, err)
	require.Len(t, slides, 3)
	assert.Equal(t, "E-sport", slides[1].Caption)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
slides:
  - image: /skini/galerija/1
    link: https://www.tvz.hr/
  - image: /skini/galerija/2
    caption: Upisi
    link: "#"
`), 0o600))

	slides, err := Load(path)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "https://www.tvz.hr/", slides[0].Link)
	assert.Equal(t, "Upisi", slides[1].Caption)
	assert.Equal(t, "#", slides[1].Link)
}

func TestParseRejectsInvalidSlides(t *testing.T) {
	_, err := Parse([]byte("slides: []\n"))
	assert.ErrorIs(t, err, ErrEmptyGallery)

	_, err = Parse([]byte("slides:\n  - caption: no image\n"))
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = Parse([]byte("slides:\n  - image: /a\n    link: not a link\n"))
	assert.ErrorAs(t, err, &verrs)

	_, err = Parse([]byte("slides: [\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
