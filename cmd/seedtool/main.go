package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/keyfleet/ticket-key-service/cmd/flags"
	"github.com/keyfleet/ticket-key-service/seedfile"
)

func main() {
	app := &cli.App{
		Name:  "seedtool",
		Usage: "Generate and check ticket key seed files",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Write a seed file with three fresh keys",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Value: "ticket.seed",
						Usage: "path of the seed file to write",
					},
				},
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					out := cCtx.String("out")

					keys, err := seedfile.Generate(out)
					if err != nil {
						return err
					}

					logger.Info("Seed file written",
						"path", out,
						"first", keys[0].Fingerprint(),
						"second", keys[1].Fingerprint(),
						"third", keys[2].Fingerprint())
					return nil
				},
			},
			{
				Name:      "check",
				Usage:     "Validate a seed file and print its key fingerprints",
				ArgsUsage: "<path>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("usage: seedtool check <path>")
					}
					path := cCtx.Args().First()

					keys, err := seedfile.Read(path)
					if err != nil {
						return err
					}

					for i, key := range keys {
						fmt.Printf("line %d: %s\n", i+1, key.Fingerprint())
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
