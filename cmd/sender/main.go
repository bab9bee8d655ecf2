package main

import (
	"fmt"
	"os"

	cliutil "aitea-distribution/cmd"
	"aitea-distribution/node"
	"aitea-distribution/node/broker"
	"aitea-distribution/node/listener"
	"aitea-distribution/types"

	"github.com/fatih/color"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("cmd")

func main() {
	app := &cli.App{
		Name:                 cliutil.APP_NAME_SENDER,
		Usage:                "sends files named by ORDER SEND_FILES commands to the receiver",
		EnableBashCompletion: true,
		Before:               cliutil.Before,
		Flags: []cli.Flag{
			cliutil.FlagRepo,
			cliutil.FlagConfig,
			cliutil.FlagEnvFile,
			cliutil.FlagVeryVerbose,
		},
		Commands: []*cli.Command{
			cliutil.InitCmd,
			runCmd,
			sendCmd,
			orderCmd,
			cliutil.GenerateDocCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "listen for orders on the sender channel",
	Action: func(cctx *cli.Context) error {
		return cliutil.RunNode(cctx, "Aitea Sender", node.NewSenderNode)
	},
}

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "send one file to the receiver right away",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "type",
			Usage: "json, pkl, txt, so or bin; inferred from the extension when omitted",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "destination name on the receiver, defaults to the base name of the path",
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "store key, defaults to the receiver's key_to_publish",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		if cctx.NArg() != 1 {
			return fmt.Errorf("expected exactly one path, got %d", cctx.NArg())
		}
		path := cctx.Args().First()

		ft := types.FileTypeFromPath(path)
		if cctx.IsSet("type") {
			var err error
			ft, err = types.ParseFileType(cctx.String("type"))
			if err != nil {
				return err
			}
		}
		name := cctx.String("name")
		if name == "" {
			name = types.LogicalName(path, ft)
		}

		cfg, err := cliutil.LoadConfig(cctx)
		if err != nil {
			return err
		}
		n, err := node.NewSenderNode(ctx, cfg)
		if err != nil {
			return err
		}
		defer n.Stop(ctx) //nolint:errcheck

		key := cctx.String("key")
		if key == "" {
			key, err = n.Manager().PublishKey()
			if err != nil {
				return err
			}
		}
		if err := n.Manager().SendFile(ctx, path, key, ft, name); err != nil {
			return err
		}

		console := color.New(color.FgMagenta, color.Bold)
		console.Print("sent: ")
		fmt.Printf("%s as %s (%s) under %s\n", path, name, ft, key)
		return nil
	},
}

var orderCmd = &cli.Command{
	Name:      "order",
	Usage:     "publish an ORDER SEND_FILES command on the sender channel",
	ArgsUsage: "<path> [<path>...]",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		if cctx.NArg() == 0 {
			return types.Wrapf(types.ErrMalformedCommand, "no file to send")
		}

		cfg, err := cliutil.LoadConfig(cctx)
		if err != nil {
			return err
		}
		conn, err := broker.Dial(ctx, broker.RoleSender, cfg.Connections.Redis.Sender)
		if err != nil {
			return err
		}
		defer conn.Close() //nolint:errcheck

		order := listener.FormatOrder(cctx.Args().Slice()...)
		n, err := conn.Publish(ctx, conn.Channel(), []byte(order))
		if err != nil {
			return err
		}
		if n == 0 {
			log.Warnf("no sender is listening on %s", conn.Channel())
		}

		console := color.New(color.FgMagenta, color.Bold)
		console.Print("order: ")
		fmt.Printf("%q on %s, %d listener(s)\n", order, conn.Channel(), n)
		return nil
	},
}
