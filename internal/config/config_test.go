package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParameters(t *testing.T) {
	path := writeParams(t, `
DBUSERNAME: surveyor
DBPASSWORD: secret
DBURL: mysql.guaminsects.net/videosurvey
VIDEOLIST:
  - 20200630_131814.mp4
  - 20200630_132814.mp4
  - 20200630_131814.mp4
`)

	p, err := LoadParameters(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, p.DBDriver)
	assert.Equal(t, "surveyor", p.DBUsername)
	assert.Equal(t, []string{"20200630_131814.mp4", "20200630_132814.mp4"}, p.VideoList)
	assert.NotContains(t, p.Redacted(), "secret")
}

func TestLoadParametersEnvOverride(t *testing.T) {
	t.Setenv("DBPASSWORD", "from-env")
	path := writeParams(t, `
DBUSERNAME: surveyor
DBPASSWORD: from-file
DBURL: localhost/videosurvey
VIDEOLIST: [A]
`)

	p, err := LoadParameters(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.DBPassword)
}

func TestLoadParametersInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no videos", "DBUSERNAME: u\nDBURL: h/db\nVIDEOLIST: []\n", "VIDEOLIST"},
		{"empty video id", "DBUSERNAME: u\nDBURL: h/db\nVIDEOLIST: ['', B]\n", "empty video id"},
		{"no url", "DBUSERNAME: u\nVIDEOLIST: [A]\n", "DBURL"},
		{"no user for mysql", "DBURL: h/db\nVIDEOLIST: [A]\n", "DBUSERNAME"},
		{"bad driver", "DBDRIVER: oracle\nDBUSERNAME: u\nDBURL: h/db\nVIDEOLIST: [A]\n", "unsupported DBDRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadParameters(writeParams(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadParametersSQLiteNeedsNoUser(t *testing.T) {
	p, err := LoadParameters(writeParams(t, "DBDRIVER: SQLite\nDBURL: ./survey.db\nVIDEOLIST: [A]\n"))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, p.DBDriver)
}

func TestLoadParametersMissingFile(t *testing.T) {
	_, err := LoadParameters(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read parameters file")
}

func TestParseExtent(t *testing.T) {
	e, err := ParseExtent("")
	require.NoError(t, err)
	assert.Equal(t, GuamExtent, e)

	e, err = ParseExtent("16098000,16137000,1486000,1535000")
	require.NoError(t, err)
	assert.Equal(t, GuamExtent, e)

	_, err = ParseExtent("1,2,3")
	assert.Error(t, err)

	_, err = ParseExtent("5,1,0,1")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRID_EXTENT", "")
	t.Setenv("GRID_SPACING", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, DefaultGridSpacing, cfg.GridHSpacing)
	assert.Equal(t, DefaultGridSpacing, cfg.GridVSpacing)
	assert.Equal(t, GuamExtent, cfg.GridExtent)
}

func TestLoadGridSpacing(t *testing.T) {
	t.Setenv("GRID_SPACING", "500,250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500.0, cfg.GridHSpacing)
	assert.Equal(t, 250.0, cfg.GridVSpacing)

	t.Setenv("GRID_SPACING", "-1")
	_, err = Load()
	assert.Error(t, err)
}
