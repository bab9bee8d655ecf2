package main

import (
	"fmt"
	"os"

	cliutil "aitea-distribution/cmd"
	"aitea-distribution/node"
	"aitea-distribution/types"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:                 cliutil.APP_NAME_RECEIVER,
		Usage:                "writes files announced by the sender into the configured directories",
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
			fetchCmd,
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
	Usage: "listen for announcements on the receiver channel",
	Action: func(cctx *cli.Context) error {
		return cliutil.RunNode(cctx, "Aitea Receiver", node.NewReceiverNode)
	},
}

var fetchCmd = &cli.Command{
	Name:  "fetch",
	Usage: "fetch one stored payload right away",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "key",
			Usage: "store key, defaults to key_to_publish",
		},
		&cli.StringFlag{
			Name:     "type",
			Usage:    "json, pkl, txt, so or bin",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "name",
			Usage:    "destination file name without extension",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context

		ft, err := types.ParseFileType(cctx.String("type"))
		if err != nil {
			return err
		}

		cfg, err := cliutil.LoadConfig(cctx)
		if err != nil {
			return err
		}
		n, err := node.NewReceiverNode(ctx, cfg)
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
		dest, err := n.Manager().ReceiveFile(ctx, key, ft, cctx.String("name"))
		if err != nil {
			return err
		}

		console := color.New(color.FgMagenta, color.Bold)
		if dest == "" {
			console.Print("nothing stored under ")
			fmt.Println(key)
			return nil
		}
		console.Print("received: ")
		fmt.Println(dest)
		return nil
	},
}
