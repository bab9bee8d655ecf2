package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"aitea-distribution/node/broker"
	"aitea-distribution/node/codec"
	"aitea-distribution/node/compress"
	"aitea-distribution/node/config"
	"aitea-distribution/types"
	"aitea-distribution/utils"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("transfer")

const (
	fileMode       os.FileMode = 0644
	sharedFileMode os.FileMode = 0755
	sharedDirMode  os.FileMode = 0755
)

// Manager moves files through the broker: SendFile stores a payload and
// announces it, ReceiveFile fetches an announced payload and writes it out.
// Calls are not synchronized; the listeners issue them one at a time.
type Manager struct {
	conns *broker.ConnSet
	stage *compress.Stage
	paths config.PathsToSave
}

func NewManager(cfg *config.Node, conns *broker.ConnSet) (*Manager, error) {
	stage, err := compress.NewStage(cfg.Transfer.Compress, cfg.Transfer.Compression)
	if err != nil {
		return nil, types.Wrap(types.ErrInvalidConfig, err)
	}
	log.Infof("%s transfer manager ready, compression: %s", conns.Role(), stage.Algorithm())
	return &Manager{
		conns: conns,
		stage: stage,
		paths: cfg.PathsToSave,
	}, nil
}

func (m *Manager) Conns() *broker.ConnSet {
	return m.conns
}

// PublishKey is the store key configured for the receiver side.
func (m *Manager) PublishKey() (string, error) {
	store, err := m.conns.Store()
	if err != nil {
		return "", err
	}
	return store.PublishKey(), nil
}

// SendFile serializes and compresses the file at path, stores the payload
// under key and announces it on the receiver channel. An empty name falls
// back to the logical name of path.
func (m *Manager) SendFile(ctx context.Context, path string, key string, ft types.FileType, name string) error {
	c, err := codec.Lookup(ft)
	if err != nil {
		return err
	}
	store, err := m.conns.Store()
	if err != nil {
		return err
	}

	if name == "" {
		name = types.LogicalName(path, ft)
	}
	if ft == types.FileTypeSo {
		name = codec.SharedObjectName(name)
	}
	if err := checkName(name); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return types.Wrap(types.ErrReadFileFailed, err)
	}
	serialized, err := c.Serialize(content)
	if err != nil {
		return err
	}
	payload, err := m.stage.Compress(serialized)
	if err != nil {
		return err
	}

	if err := store.Set(ctx, key, payload); err != nil {
		return err
	}
	log.Infof("stored %s (%s) under %s: %s, %s compressed, payload %s",
		path, ft, key, humanize.Bytes(uint64(len(serialized))),
		humanize.Bytes(uint64(len(payload))), utils.PayloadId(payload))

	msg, err := types.Announcement{KeyToVerify: key, FileType: ft, FileName: name}.Marshal()
	if err != nil {
		return err
	}
	n, err := store.Publish(ctx, store.Channel(), msg)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warnf("announced %s on %s but no receiver is subscribed", name, store.Channel())
	} else {
		log.Infof("announced %s on %s to %d receiver(s)", name, store.Channel(), n)
	}
	return nil
}

// ReceiveFile fetches the payload stored under key and writes it to the
// directory configured for ft. It returns the written path. A missing key is
// logged and yields an empty path and no error.
func (m *Manager) ReceiveFile(ctx context.Context, key string, ft types.FileType, name string) (string, error) {
	c, err := codec.Lookup(ft)
	if err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	store, err := m.conns.Store()
	if err != nil {
		return "", err
	}

	payload, err := store.Get(ctx, key)
	if errors.Is(err, types.ErrKeyNotFound) {
		log.Warnf("nothing stored under %s, %s not written", key, name)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	log.Debugf("fetched %s from %s, payload %s", humanize.Bytes(uint64(len(payload))), key, utils.PayloadId(payload))

	serialized, err := m.stage.Decompress(payload)
	if err != nil {
		return "", err
	}
	content, err := c.Deserialize(serialized)
	if err != nil {
		return "", err
	}

	dest, err := m.write(ft, c.DestName(name), content)
	if err != nil {
		return "", err
	}
	log.Infof("received %s (%s) from %s into %s", name, ft, key, dest)
	return dest, nil
}

func (m *Manager) write(ft types.FileType, fileName string, content []byte) (string, error) {
	dir := m.paths.Dir(ft)
	dest := filepath.Join(dir, fileName)

	if ft != types.FileTypeSo {
		if err := os.WriteFile(dest, content, fileMode); err != nil {
			return "", types.Wrap(types.ErrWriteFileFailed, err)
		}
		return dest, nil
	}

	if err := os.MkdirAll(dir, sharedDirMode); err != nil {
		return "", types.Wrap(types.ErrWriteFileFailed, err)
	}
	if err := os.WriteFile(dest, content, sharedFileMode); err != nil {
		return "", types.Wrap(types.ErrWriteFileFailed, err)
	}
	// WriteFile keeps the mode of an existing file and is subject to umask
	if err := os.Chmod(dest, sharedFileMode); err != nil {
		return "", types.Wrap(types.ErrWriteFileFailed, err)
	}
	return dest, nil
}

// checkName only accepts plain file names, so an announcement can never
// write outside the configured directories.
func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return types.Wrapf(types.ErrInvalidFileName, "%q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return types.Wrapf(types.ErrInvalidFileName, "%q contains a path separator", name)
	}
	return nil
}
