package logsystem

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"aitea-distribution/node/config"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logging.Logger("logsystem")

const megabyte = 1024 * 1024

// Settings is the resolved form of config.Logging.
type Settings struct {
	Dir      string
	FileName string

	// lumberjack limits
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int

	// TotalBytes caps the size of all log files in Dir
	TotalBytes uint64
}

func (s Settings) Path() string {
	return filepath.Join(s.Dir, s.FileName)
}

// Resolve turns the human readable logging settings into file limits. app
// names the log directory below the default log root.
func Resolve(cfg config.Logging, app string) (Settings, error) {
	s := Settings{
		Dir:      cfg.LogPath,
		FileName: cfg.LogName,
	}
	if s.Dir == "" {
		s.Dir = filepath.Join(config.DefaultLogRoot, app)
	}
	if s.FileName == "" {
		s.FileName = app
	}
	if !strings.HasSuffix(s.FileName, ".log") {
		s.FileName += ".log"
	}

	rotation, err := ParseSize(cfg.Rotation)
	if err != nil {
		return s, fmt.Errorf("rotation: %w", err)
	}
	s.MaxSizeMB = int(math.Ceil(float64(rotation) / megabyte))
	if s.MaxSizeMB < 1 {
		s.MaxSizeMB = 1
	}

	retention, err := ParseRetention(cfg.Retention)
	if err != nil {
		return s, fmt.Errorf("retention: %w", err)
	}
	s.MaxAgeDays = int(math.Ceil(retention.Hours() / 24))

	s.TotalBytes, err = ParseSize(cfg.MaxSize)
	if err != nil {
		return s, fmt.Errorf("max_size: %w", err)
	}
	if s.TotalBytes > 0 {
		s.MaxBackups = int(s.TotalBytes/(uint64(s.MaxSizeMB)*megabyte)) - 1
		if s.MaxBackups < 1 {
			s.MaxBackups = 1
		}
	}
	return s, nil
}

// ParseSize parses sizes such as "500 MB" or "10GB". Empty means no limit.
func ParseSize(s string) (uint64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}

var retentionUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// ParseRetention parses ages such as "10 days", "2 weeks" or "36h". Empty
// means files are kept forever.
func ParseRetention(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid retention %q", s)
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid retention %q", s)
	}
	unit, ok := retentionUnits[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return 0, fmt.Errorf("invalid retention unit %q", fields[1])
	}
	return time.Duration(n * float64(unit)), nil
}

// Setup sends every log line to stdout and to a rotating file, and applies
// the configured level to all subsystems. The returned closer flushes and
// closes the file.
func Setup(cfg config.Logging, app string) (io.Closer, error) {
	s, err := Resolve(cfg, app)
	if err != nil {
		return nil, err
	}
	lvl, set, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return nil, err
	}
	if removed, err := Prune(s.Dir, s.FileName, s.TotalBytes); err != nil {
		log.Warnf("pruning %s: %v", s.Dir, err)
	} else if removed > 0 {
		log.Infof("removed %d old log file(s) from %s", removed, s.Dir)
	}

	file := &lumberjack.Logger{
		Filename:   s.Path(),
		MaxSize:    s.MaxSizeMB,
		MaxAge:     s.MaxAgeDays,
		MaxBackups: s.MaxBackups,
		LocalTime:  true,
	}

	logging.SetPrimaryCore(zapcore.NewTee(
		newCore(zapcore.Lock(os.Stdout), zapcore.CapitalColorLevelEncoder),
		newCore(zapcore.AddSync(file), zapcore.CapitalLevelEncoder),
	))
	if set {
		logging.SetAllLoggers(lvl)
	}

	log.Infof("logging to %s (rotate at %d MB, keep %d days, %d backups)",
		s.Path(), s.MaxSizeMB, s.MaxAgeDays, s.MaxBackups)
	return file, nil
}

// the primary core logs everything, subsystem levels do the filtering
func newCore(ws zapcore.WriteSyncer, levelEncoder zapcore.LevelEncoder) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = levelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, zap.NewAtomicLevelAt(zapcore.DebugLevel))
}

// SetLevel applies level to every subsystem. WARNING and CRITICAL are
// accepted as WARN and FATAL.
func SetLevel(level string) error {
	lvl, set, err := parseLevel(level)
	if err != nil || !set {
		return err
	}
	logging.SetAllLoggers(lvl)
	return nil
}

// parseLevel reports set=false for an empty level.
func parseLevel(level string) (logging.LogLevel, bool, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "":
		return 0, false, nil
	case "WARNING":
		level = "WARN"
	case "CRITICAL":
		level = "FATAL"
	}
	lvl, err := logging.LevelFromString(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return 0, false, err
	}
	return lvl, true, nil
}

// Prune removes the oldest log files of dir until all of them together fit
// in total bytes. The active file is never removed. A zero total disables
// pruning.
func Prune(dir string, active string, total uint64) (int, error) {
	if total == 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	type logFile struct {
		path    string
		size    uint64
		modTime time.Time
	}
	var (
		files []logFile
		sum   uint64
	)
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sum += uint64(info.Size())
		if e.Name() == active {
			continue
		}
		files = append(files, logFile{
			path:    filepath.Join(dir, e.Name()),
			size:    uint64(info.Size()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	removed := 0
	for _, f := range files {
		if sum <= total {
			break
		}
		if err := os.Remove(f.path); err != nil {
			return removed, err
		}
		sum -= f.size
		removed++
	}
	return removed, nil
}
