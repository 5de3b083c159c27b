package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

const (
	DeclarationFile   = "patch.json"
	DefaultDockerFile = "Dockerfile"
)

// Declaration is the content of a patch directory's patch.json.
type Declaration struct {
	ImageIDs             []string
	DockerFile           string
	BumpVersion          bool
	DeleteUntaggedImages bool
}

type rawDeclaration struct {
	ImageIDs             []string        `json:"imageIds"`
	DockerFile           string          `json:"dockerFile"`
	BumpVersion          *bool           `json:"bumpVersion"`
	DeleteUntaggedImages *bool           `json:"deleteUntaggedImages"`
	TagList              json.RawMessage `json:"tagList"`
}

// LoadDeclaration reads dir/patch.json. Comments and trailing commas are
// allowed. Missing bumpVersion defaults to true, missing
// deleteUntaggedImages to false.
func LoadDeclaration(dir string) (*Declaration, error) {
	path := filepath.Join(dir, DeclarationFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data, err = hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	var raw rawDeclaration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	// Any tagList key counts, null and false included.
	if raw.TagList != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigDeprecated)
	}

	d := &Declaration{
		ImageIDs:    raw.ImageIDs,
		DockerFile:  raw.DockerFile,
		BumpVersion: true,
	}
	if d.DockerFile == "" {
		d.DockerFile = DefaultDockerFile
	}
	if raw.BumpVersion != nil {
		d.BumpVersion = *raw.BumpVersion
	}
	if raw.DeleteUntaggedImages != nil {
		d.DeleteUntaggedImages = *raw.DeleteUntaggedImages
	}
	return d, nil
}

// DockerFilePath is the build file location inside dir.
func (d *Declaration) DockerFilePath(dir string) string {
	return filepath.Join(dir, d.DockerFile)
}
