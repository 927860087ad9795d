package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/keyfleet/ticket-key-service/api"
	"github.com/keyfleet/ticket-key-service/api/clients"
	"github.com/keyfleet/ticket-key-service/cmd/flags"
	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/seedfile"
)

func main() {
	app := &cli.App{
		Name:  "operator",
		Usage: "Drive the rotation server from the command line",
		Flags: append([]cli.Flag{flags.ServerAddrFlag}, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:  "rotate",
				Usage: "Rotate one ring, optionally pushing the new key to the fleet",
				Flags: []cli.Flag{
					flags.RegionFlag,
					flags.KeyIDFlag,
					&cli.StringFlag{
						Name:  "candidate-file",
						Usage: "seed file whose third line supplies the candidate key (generated server-side when absent)",
					},
					&cli.BoolFlag{
						Name:  "push",
						Usage: "push the ring's newest key to the region's fleet after rotating",
					},
				},
				Action: runRotate,
			},
			{
				Name:   "show",
				Usage:  "Show a ring's fingerprints and last rotation time",
				Flags:  []cli.Flag{flags.RegionFlag, flags.KeyIDFlag},
				Action: runShow,
			},
			{
				Name:  "push",
				Usage: "Push a ring's newest key to the region's fleet",
				Flags: []cli.Flag{
					flags.RegionFlag,
					flags.KeyIDFlag,
					&cli.StringSliceFlag{
						Name:  "instance",
						Usage: "limit the push to named inventory instances (repeatable)",
					},
				},
				Action: runPush,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) *clients.RotationClient {
	return &clients.RotationClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
}

func runRotate(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	client := newClient(cCtx)
	region := interfaces.Region(cCtx.String(flags.RegionFlag.Name))

	req := api.RotateRequest{KeyID: cCtx.String(flags.KeyIDFlag.Name)}
	if candidateFile := cCtx.String("candidate-file"); candidateFile != "" {
		keys, err := seedfile.Read(candidateFile)
		if err != nil {
			return err
		}
		req.Candidate = keys[2].String()
	}

	resp, err := client.Rotate(region, req)
	if err != nil {
		return err
	}

	switch resp.Status {
	case "rotated":
		logger.Info("Ring rotated",
			"region", region.String(),
			"keyID", resp.Ring.KeyID,
			"newest", resp.Ring.Third,
			"evicted", resp.Evicted)
	case "too_soon":
		logger.Info("Rotation deferred by cooldown",
			"region", region.String(),
			"keyID", resp.Ring.KeyID,
			"nextEligible", resp.NextEligible.String())
	}

	if cCtx.Bool("push") && resp.Status == "rotated" {
		return pushAndReport(logger, client, region, api.PushRequest{KeyID: req.KeyID})
	}
	return nil
}

func runShow(cCtx *cli.Context) error {
	client := newClient(cCtx)
	region := interfaces.Region(cCtx.String(flags.RegionFlag.Name))
	keyID := interfaces.KeyID(cCtx.String(flags.KeyIDFlag.Name))

	summary, err := client.Ring(region, keyID)
	if err != nil {
		return err
	}

	fmt.Printf("key_id:        %s\n", summary.KeyID)
	fmt.Printf("last_rotation: %s\n", summary.LastRotation)
	fmt.Printf("first:         %s\n", summary.First)
	fmt.Printf("second:        %s\n", summary.Second)
	fmt.Printf("third:         %s\n", summary.Third)
	return nil
}

func runPush(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	client := newClient(cCtx)
	region := interfaces.Region(cCtx.String(flags.RegionFlag.Name))

	req := api.PushRequest{
		KeyID:     cCtx.String(flags.KeyIDFlag.Name),
		Instances: cCtx.StringSlice("instance"),
	}
	return pushAndReport(logger, client, region, req)
}

func pushAndReport(logger *slog.Logger, client *clients.RotationClient, region interfaces.Region, req api.PushRequest) error {
	resp, err := client.Push(region, req)
	if err != nil {
		return err
	}

	failed := 0
	for _, result := range resp.Results {
		if result.Err == "" {
			logger.Info("Instance accepted key",
				"instance", result.Instance,
				"fingerprint", resp.Fingerprint)
		} else {
			failed++
			logger.Warn("Instance did not accept key",
				"instance", result.Instance,
				"err", result.Err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("push incomplete: %d of %d instances failed", failed, len(resp.Results))
	}
	return nil
}
