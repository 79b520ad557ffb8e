package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Survey database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Parameters are the survey run parameters. Key names follow the
// make_crb_damage_map.yaml file the field team already maintains.
type Parameters struct {
	DBUsername        string   `yaml:"DBUSERNAME"`
	DBPassword        string   `yaml:"DBPASSWORD"`
	DBURL             string   `yaml:"DBURL"` // host[:port]/database, or a file path for sqlite
	DBDriver          string   `yaml:"DBDRIVER"`
	VideoList         []string `yaml:"VIDEOLIST"`
	SkipMissingVideos bool     `yaml:"SKIP_MISSING_VIDEOS"`
}

// LoadParameters reads and validates the survey parameters file.
// DBUSERNAME, DBPASSWORD and DBURL may be overridden from the environment.
func LoadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file %s: %w", path, err)
	}

	var p Parameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse parameters file %s: %w", path, err)
	}

	if v := os.Getenv("DBUSERNAME"); v != "" {
		p.DBUsername = v
	}
	if v := os.Getenv("DBPASSWORD"); v != "" {
		p.DBPassword = v
	}
	if v := os.Getenv("DBURL"); v != "" {
		p.DBURL = v
	}

	if err := p.normalize(); err != nil {
		return nil, fmt.Errorf("invalid parameters in %s: %w", path, err)
	}
	return &p, nil
}

func (p *Parameters) normalize() error {
	p.DBDriver = strings.ToLower(strings.TrimSpace(p.DBDriver))
	if p.DBDriver == "" {
		p.DBDriver = DriverMySQL
	}

	switch p.DBDriver {
	case DriverMySQL, DriverPostgres:
		if p.DBUsername == "" {
			return errors.New("DBUSERNAME is required")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported DBDRIVER %q", p.DBDriver)
	}

	if strings.TrimSpace(p.DBURL) == "" {
		return errors.New("DBURL is required")
	}

	seen := make(map[string]bool, len(p.VideoList))
	videos := make([]string, 0, len(p.VideoList))
	for _, v := range p.VideoList {
		v = strings.TrimSpace(v)
		if v == "" {
			return errors.New("VIDEOLIST contains an empty video id")
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		videos = append(videos, v)
	}
	if len(videos) == 0 {
		return errors.New("VIDEOLIST must list at least one video")
	}
	p.VideoList = videos
	return nil
}

// Redacted describes the connection without the password, for logging.
func (p *Parameters) Redacted() string {
	return fmt.Sprintf("%s://%s:***@%s (%d videos)", p.DBDriver, p.DBUsername, p.DBURL, len(p.VideoList))
}
