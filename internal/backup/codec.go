package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/worklog/internal/model"
)

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown snapshot format %q (want json or yaml)", s)
}

// FormatFromPath picks the encoding from a file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Encode writes data to w.
func Encode(w io.Writer, data model.BackupData, format Format) error {
	if data.DailyTasks == nil {
		data.DailyTasks = []model.DailyTask{}
	}
	if data.Projects == nil {
		data.Projects = []model.Project{}
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown snapshot format %q", format)
}

// Decode reads a snapshot from r. Unknown fields are ignored. Failures are
// reported as *ImportError.
func Decode(r io.Reader, format Format) (model.BackupData, error) {
	var data model.BackupData
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&data)
	case FormatJSON, "":
		err = json.NewDecoder(r).Decode(&data)
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	if err == io.EOF {
		err = errors.New("empty snapshot")
	}
	if err != nil {
		return model.BackupData{}, importFailed(fmt.Errorf("decoding %s: %w", format, err))
	}
	return data, nil
}
