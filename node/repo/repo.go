package repo

import (
	"bytes"
	"os"
	"path/filepath"

	"aitea-distribution/node/config"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

var log = logging.Logger("repo")

const fsConfig = "config.toml"

// Repo is the config home of a sender or receiver.
type Repo struct {
	path       string
	configPath string
}

func NewRepo(path string) (*Repo, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	return &Repo{
		path:       path,
		configPath: filepath.Join(path, fsConfig),
	}, nil
}

func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) ConfigPath() string {
	return r.configPath
}

func (r *Repo) Exists() (bool, error) {
	_, err := os.Stat(r.configPath)
	notexist := os.IsNotExist(err)
	if notexist {
		err = nil
	}
	return !notexist, err
}

// Init creates the repo with a commented config.toml. The connections block
// is filled with conns; an existing config is left untouched.
func (r *Repo) Init(conns config.Connections) error {
	exist, err := r.Exists()
	if err != nil {
		return err
	}
	if exist {
		log.Infof("repo at '%s' already initialized", r.path)
		return nil
	}

	log.Infof("Initializing repo at '%s'", r.path)
	err = os.MkdirAll(r.path, 0755) //nolint: gosec
	if err != nil && !os.IsExist(err) {
		return err
	}

	if err := r.initConfig(conns); err != nil {
		return xerrors.Errorf("init config: %w", err)
	}
	return nil
}

func (r *Repo) initConfig(conns config.Connections) error {
	cfg := config.DefaultNode()
	cfg.Connections = conns

	comm, err := config.ConfigComment(cfg)
	if err != nil {
		return xerrors.Errorf("load default: %w", err)
	}

	c, err := os.OpenFile(r.configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	_, err = c.Write(comm)
	if err != nil {
		_ = c.Close()
		return xerrors.Errorf("write config: %w", err)
	}

	if err := c.Close(); err != nil {
		return xerrors.Errorf("close config: %w", err)
	}
	return nil
}

// Config loads config.toml on top of the defaults. Without a repo only the
// defaults and the environment overrides apply.
func (r *Repo) Config() (*config.Node, error) {
	exist, err := r.Exists()
	if err != nil {
		return nil, err
	}
	if !exist {
		log.Warnf("no config at %s, using defaults and environment", r.configPath)
		return config.FromReader(bytes.NewReader(nil), config.FormatTOML, config.DefaultNode())
	}
	return config.FromFile(r.configPath, config.DefaultNode())
}
