package cliutil

import (
	"context"
	"fmt"
	"os"

	"aitea-distribution/node"
	"aitea-distribution/node/config"
	"aitea-distribution/node/logsystem"
	"aitea-distribution/node/repo"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	logging "github.com/ipfs/go-log/v2"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("cmd")

const (
	APP_NAME_SENDER   = "aitea-sender"
	APP_NAME_RECEIVER = "aitea-receiver"

	FlagStorageRepo        = "repo"
	FlagStorageDefaultRepo = "~/.aitea-distribution"
)

var FlagRepo = &cli.StringFlag{
	Name:    FlagStorageRepo,
	Usage:   "repo directory holding config.toml",
	EnvVars: []string{"AITEA_REPO"},
	Value:   FlagStorageDefaultRepo,
}

var ConfigPath string
var FlagConfig = &cli.StringFlag{
	Name:        "config",
	Usage:       "config file (toml, json or yaml), replaces the repo config",
	EnvVars:     []string{"AITEA_CONFIG"},
	Destination: &ConfigPath,
}

var EnvFile string
var FlagEnvFile = &cli.StringFlag{
	Name:        "env-file",
	Usage:       "dotenv file with AITEA_* overrides",
	Value:       ".env",
	Destination: &EnvFile,
}

// IsVeryVerbose is a global var signalling if the CLI is running in very
// verbose mode or not (default: false).
var IsVeryVerbose bool

// FlagVeryVerbose enables very verbose mode, which is useful when debugging
// the CLI itself. It should be included as a flag on the top-level command
// (e.g. aitea-receiver -vv).
var FlagVeryVerbose = &cli.BoolFlag{
	Name:        "vv",
	Usage:       "enables very verbose mode, useful for debugging the CLI",
	Destination: &IsVeryVerbose,
}

var subsystems = []string{
	"cmd",
	"node",
	"broker",
	"transfer",
	"listener",
	"config",
	"repo",
	"logsystem",
}

// Before loads the dotenv file and sets the initial log levels.
func Before(_ *cli.Context) error {
	if err := godotenv.Load(EnvFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading %s: %w", EnvFile, err)
	}

	setLogLevel("INFO")
	return nil
}

func setLogLevel(level string) {
	if IsVeryVerbose {
		level = "DEBUG"
	}
	for _, s := range subsystems {
		_ = logging.SetLogLevel(s, level)
	}
}

// LoadConfig reads the file named by --config, or the repo config.
func LoadConfig(cctx *cli.Context) (*config.Node, error) {
	if ConfigPath != "" {
		return config.FromFile(ConfigPath, config.DefaultNode())
	}
	r, err := repo.NewRepo(cctx.String(FlagStorageRepo))
	if err != nil {
		return nil, err
	}
	return r.Config()
}

var InitCmd = &cli.Command{
	Name:  "init",
	Usage: "initialize the repo with a commented config.toml",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sender-host",
			Usage: "redis host of the sender control channel",
			Value: "localhost",
		},
		&cli.StringFlag{
			Name:  "receiver-host",
			Usage: "redis host of the receiver store and channel",
			Value: "localhost",
		},
	},
	Action: func(cctx *cli.Context) error {
		r, err := repo.NewRepo(cctx.String(FlagStorageRepo))
		if err != nil {
			return err
		}

		conns := config.ExampleConnections()
		conns.Redis.Sender.Host = cctx.String("sender-host")
		conns.Redis.Receiver.Host = cctx.String("receiver-host")
		if err := r.Init(conns); err != nil {
			return err
		}

		console := color.New(color.FgMagenta, color.Bold)
		console.Print("config: ")
		fmt.Println(r.ConfigPath())
		return nil
	},
}

// RunNode starts the node built by newNode and blocks until it is stopped
// by a signal or its listener ends.
func RunNode(cctx *cli.Context, banner string, newNode func(ctx context.Context, cfg *config.Node) (*node.Node, error)) error {
	myFigure := figure.NewFigure(banner, "", true)
	myFigure.Print()

	ctx := cctx.Context

	cfg, err := LoadConfig(cctx)
	if err != nil {
		return err
	}

	closer, err := logsystem.Setup(cfg.Logging, cctx.App.Name)
	if err != nil {
		log.Warnf("file logging disabled: %v", err)
		if err := logsystem.SetLevel(cfg.Logging.Level); err != nil {
			log.Warnf("invalid log level %q: %v", cfg.Logging.Level, err)
		}
	} else {
		defer closer.Close() //nolint:errcheck
	}
	if IsVeryVerbose {
		setLogLevel("DEBUG")
	}

	n, err := newNode(ctx, cfg)
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		_ = n.Stop(ctx)
		return err
	}

	finishCh := node.MonitorShutdown(
		n.Done(),
		node.ShutdownHandler{Component: string(n.Role()), StopFunc: n.Stop},
	)
	<-finishCh
	return n.Err()
}

var GenerateDocCmd = &cli.Command{
	Name:   "clidoc",
	Hidden: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "output",
			Usage:    "file path to export to",
			Required: false,
		},
		&cli.StringFlag{
			Name:     "doctype",
			Usage:    "current supported type: markdown / man",
			Required: false,
			Value:    "markdown",
		},
	},
	Action: func(cctx *cli.Context) error {
		var output string
		var err error
		if cctx.String("doctype") == "markdown" {
			output, err = cctx.App.ToMarkdown()
		} else {
			output, err = cctx.App.ToMan()
		}
		if err != nil {
			return err
		}
		outputFile := cctx.String("output")
		if outputFile == "" {
			outputFile = fmt.Sprintf("./docs/%s.md", cctx.App.Name)
		}
		err = os.WriteFile(outputFile, []byte(output), 0644)
		if err != nil {
			return err
		}
		fmt.Printf("%s clidoc is exported to %s", cctx.String("doctype"), outputFile)
		fmt.Println()
		return nil
	},
}
