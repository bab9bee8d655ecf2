package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"aitea-distribution/types"
)

// Node is the configuration of one sender or receiver process.
type Node struct {
	Logging     Logging     `toml:"logging" json:"logging" yaml:"logging"`
	PathsToSave PathsToSave `toml:"paths_to_save" json:"paths_to_save" yaml:"paths_to_save" split_words:"true"`
	Transfer    Transfer    `toml:"transfer" json:"transfer" yaml:"transfer"`

	// ConnectionsPath points to a separate file holding the connections
	// block. When set it replaces the inline connections.
	ConnectionsPath string      `toml:"connections_path" json:"connections_path" yaml:"connections_path" split_words:"true"`
	Connections     Connections `toml:"connections" json:"connections" yaml:"connections"`
}

// Logging contains configs for the log system
type Logging struct {
	// DEBUG, INFO, WARN, ERROR
	Level string `toml:"level" json:"level" yaml:"level"`

	// directory of the log files, defaults to /var/log/aitea/aitea_distribution/<app>/
	LogPath string `toml:"log_path" json:"log_path" yaml:"log_path" split_words:"true"`
	LogName string `toml:"log_name" json:"log_name" yaml:"log_name" split_words:"true"`

	// size of one log file before it is rotated, e.g. "500 MB"
	Rotation string `toml:"rotation" json:"rotation" yaml:"rotation"`

	// age after which rotated files are removed, e.g. "10 days"
	Retention string `toml:"retention" json:"retention" yaml:"retention"`

	// total size the log directory may take, e.g. "10 GB"
	MaxSize string `toml:"max_size" json:"max_size" yaml:"max_size" split_words:"true"`
}

// PathsToSave contains the destination directory of each file type.
type PathsToSave struct {
	// DefaultRoot is used for types without a directory and always for bin.
	DefaultRoot string `toml:"default_root" json:"default_root" yaml:"default_root" split_words:"true"`

	JSON string `toml:"json" json:"json" yaml:"json"`
	Pkl  string `toml:"pkl" json:"pkl" yaml:"pkl"`
	Txt  string `toml:"txt" json:"txt" yaml:"txt"`
	So   string `toml:"so" json:"so" yaml:"so"`
}

// Dir returns the destination directory of ft.
func (p PathsToSave) Dir(ft types.FileType) string {
	var dir string
	switch ft {
	case types.FileTypeJSON:
		dir = p.JSON
	case types.FileTypePkl:
		dir = p.Pkl
	case types.FileTypeTxt:
		dir = p.Txt
	case types.FileTypeSo:
		dir = p.So
	}
	if dir == "" {
		return p.root()
	}
	return dir
}

func (p PathsToSave) root() string {
	if p.DefaultRoot == "" {
		return DefaultSaveRoot
	}
	return p.DefaultRoot
}

// Transfer contains configs for the transfer manager
type Transfer struct {
	// compress payloads; both ends must agree
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// zlib, zstd or lz4
	Compression string `toml:"compression" json:"compression" yaml:"compression"`

	// store every file of an order under its own key instead of the shared
	// key_to_publish
	PerFileKeys bool `toml:"per_file_keys" json:"per_file_keys" yaml:"per_file_keys" split_words:"true"`

	// pause of a listener after a failed receive
	ReceiveErrorBackoff Duration `toml:"receive_error_backoff" json:"receive_error_backoff" yaml:"receive_error_backoff" split_words:"true"`
}

// Connections mirrors the connections file: {"redis": {"sender": ..., "receiver": ...}}.
type Connections struct {
	Redis RedisRoles `toml:"redis" json:"redis" yaml:"redis"`
}

type RedisRoles struct {
	Sender   Redis `toml:"sender" json:"sender" yaml:"sender"`
	Receiver Redis `toml:"receiver" json:"receiver" yaml:"receiver"`
}

// Redis contains the broker settings of one role.
type Redis struct {
	Host     string `toml:"host" json:"host" yaml:"host"`
	Port     int    `toml:"port" json:"port" yaml:"port"`
	Password string `toml:"password" json:"password" yaml:"password"`
	DB       int    `toml:"db" json:"db" yaml:"db"`

	// cluster seed addresses, replaces host and port when set
	Addrs []string `toml:"addrs" json:"addrs" yaml:"addrs"`

	PoolSize int `toml:"pool_size" json:"pool_size" yaml:"pool_size" split_words:"true"`

	ChannelToListen string `toml:"channel_to_listen" json:"channel_to_listen" yaml:"channel_to_listen" split_words:"true"`
	KeyToPublish    string `toml:"key_to_publish" json:"key_to_publish" yaml:"key_to_publish" split_words:"true"`
}

// Configured reports whether the block names a broker at all.
func (r Redis) Configured() bool {
	return r.Host != "" || len(r.Addrs) > 0
}

func (r Redis) Addresses() []string {
	if len(r.Addrs) > 0 {
		return r.Addrs
	}
	port := r.Port
	if port == 0 {
		port = DefaultRedisPort
	}
	return []string{net.JoinHostPort(r.Host, strconv.Itoa(port))}
}

func (r Redis) Channel() string {
	if r.ChannelToListen == "" {
		return DefaultChannel
	}
	return r.ChannelToListen
}

func (r Redis) PublishKey() string {
	if r.KeyToPublish == "" {
		return DefaultPublishKey
	}
	return r.KeyToPublish
}

// String never prints the password.
func (r Redis) String() string {
	pw := ""
	if r.Password != "" {
		pw = "******"
	}
	return fmt.Sprintf("{addrs:%v db:%d password:%q channel_to_listen:%s key_to_publish:%s}",
		r.Addresses(), r.DB, pw, r.Channel(), r.PublishKey())
}

// Duration is a time.Duration read from strings such as "1s" or "500ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
