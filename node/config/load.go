package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"aitea-distribution/types"

	"github.com/BurntSushi/toml"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

var log = logging.Logger("config")

// EnvPrefix prefixes every environment override, e.g.
// AITEA_CONNECTIONS_REDIS_RECEIVER_HOST or AITEA_PATHS_TO_SAVE_SO.
const EnvPrefix = "AITEA"

type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the decoder of a config file from its extension; anything
// unknown is read as TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// FromFile loads config from a file, on top of the defaults in def.
func FromFile(path string, def *Node) (*Node, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, types.Wrap(types.ErrReadConfigFailed, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, types.Wrap(types.ErrReadConfigFailed, err)
	}
	defer file.Close() //nolint:errcheck

	log.Debugf("loading config from %s", path)
	return FromReader(file, FormatOf(path), def)
}

// FromReader loads config from a reader instance, then the separate
// connections file if one is named, then environment overrides.
func FromReader(reader io.Reader, format Format, def *Node) (*Node, error) {
	cfg := def
	if err := decode(reader, format, cfg); err != nil {
		return nil, types.Wrap(types.ErrDecodeConfigFailed, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, types.Wrapf(types.ErrInvalidConfig, "processing env vars overrides: %v", err)
	}

	if cfg.ConnectionsPath != "" {
		conns, err := connectionsFromFile(cfg.ConnectionsPath)
		if err != nil {
			return nil, err
		}
		cfg.Connections = conns

		// env overrides win over the connections file too
		if err := envconfig.Process(EnvPrefix, cfg); err != nil {
			return nil, types.Wrapf(types.ErrInvalidConfig, "processing env vars overrides: %v", err)
		}
	}

	if err := expandPaths(cfg); err != nil {
		return nil, types.Wrap(types.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func connectionsFromFile(path string) (Connections, error) {
	var conns Connections
	path, err := homedir.Expand(path)
	if err != nil {
		return conns, types.Wrap(types.ErrReadConfigFailed, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return conns, types.Wrap(types.ErrReadConfigFailed, err)
	}
	log.Debugf("loading connections from %s", path)
	if err := decode(bytes.NewReader(data), FormatOf(path), &conns); err != nil {
		return conns, types.Wrap(types.ErrDecodeConfigFailed, err)
	}
	return conns, nil
}

func decode(reader io.Reader, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		return jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(reader).Decode(v)
	case FormatYAML:
		err := yaml.NewDecoder(reader).Decode(v)
		if err == io.EOF {
			return nil
		}
		return err
	default:
		_, err := toml.NewDecoder(reader).Decode(v)
		return err
	}
}

func expandPaths(cfg *Node) error {
	for _, p := range []*string{
		&cfg.Logging.LogPath,
		&cfg.PathsToSave.DefaultRoot,
		&cfg.PathsToSave.JSON,
		&cfg.PathsToSave.Pkl,
		&cfg.PathsToSave.Txt,
		&cfg.PathsToSave.So,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func ConfigComment(t interface{}) ([]byte, error) {
	return ConfigUpdate(t, DefaultNode(), true)
}

// ConfigUpdate encodes cfgCur as TOML. With comment set, every line equal to
// the same line of cfgDef is commented out, so the file only states what
// differs from the defaults.
func ConfigUpdate(cfgCur, cfgDef interface{}, comment bool) ([]byte, error) {
	var nodeStr, defStr string
	if cfgDef != nil {
		buf := new(bytes.Buffer)
		e := toml.NewEncoder(buf)
		if err := e.Encode(cfgDef); err != nil {
			return nil, types.Wrap(types.ErrEncodeConfigFailed, err)
		}

		defStr = buf.String()
	}

	{
		buf := new(bytes.Buffer)
		e := toml.NewEncoder(buf)
		if err := e.Encode(cfgCur); err != nil {
			return nil, types.Wrap(types.ErrEncodeConfigFailed, err)
		}

		nodeStr = buf.String()
	}

	if comment {
		// create a map of default lines, so we can comment those out later
		defLines := strings.Split(defStr, "\n")
		defaults := map[string]struct{}{}
		for i := range defLines {
			l := strings.TrimSpace(defLines[i])
			if len(l) == 0 {
				continue
			}
			if l[0] == '#' || l[0] == '[' {
				continue
			}
			defaults[l] = struct{}{}
		}

		nodeLines := strings.Split(nodeStr, "\n")
		var outLines []string

		sectionRx := regexp.MustCompile(`\[(.+)]`)

		for i, line := range nodeLines {
			// never comment sections
			trimmed := strings.TrimSpace(line)
			if len(trimmed) > 0 && trimmed[0] == '[' {
				if m := sectionRx.FindSubmatch([]byte(trimmed)); len(m) != 2 {
					return nil, types.Wrapf(types.ErrInvalidConfig, "section didn't match (line %d)", i)
				}
				outLines = append(outLines, line)
				continue
			}

			pad := strings.Repeat(" ", len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace)))

			// if there is the same line in the default config, comment it out it output
			if _, found := defaults[trimmed]; (cfgDef == nil || found) && len(line) > 0 {
				line = pad + "#" + line[len(pad):]
			}
			outLines = append(outLines, line)
		}

		nodeStr = strings.Join(outLines, "\n")
	}

	// sanity-check that the updated config parses the same way as the current one
	if cur, ok := cfgCur.(*Node); ok && cfgDef != nil {
		def, ok := cfgDef.(*Node)
		if ok {
			updated := *def
			if _, err := toml.Decode(nodeStr, &updated); err != nil {
				return nil, types.Wrap(types.ErrDecodeConfigFailed, err)
			}
			if !reflect.DeepEqual(*cur, updated) {
				return nil, types.Wrapf(types.ErrInvalidConfig, "updated config didn't match current config")
			}
		}
	}

	return []byte(nodeStr), nil
}
