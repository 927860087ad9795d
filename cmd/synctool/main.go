package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keyfleet/ticket-key-service/cmd/flags"
	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/fleetsync"
	"github.com/keyfleet/ticket-key-service/interfaces"
)

var instanceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "addr",
		Usage: "instance command socket address (host:port, or a unix socket path with --network unix)",
	},
	&cli.StringFlag{
		Name:  "network",
		Value: "tcp",
		Usage: "network of the command socket: tcp or unix",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Value: fleetsync.DefaultExecTimeout,
		Usage: "per-command timeout",
	},
	&cli.BoolFlag{
		Name:  "mock",
		Usage: "ignore --addr and run the command against a local in-memory instance",
	},
}

func main() {
	app := &cli.App{
		Name:  "synctool",
		Usage: "Talk to one instance's key command socket directly",
		Flags: append(instanceFlags, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the key identifiers the instance tracks",
				Action: runList,
			},
			{
				Name:      "show",
				Usage:     "Show the instance's runtime key window for one identifier",
				ArgsUsage: "<key-id>",
				Action:    runShow,
			},
			{
				Name:      "set",
				Usage:     "Insert key material, aging the instance's window",
				ArgsUsage: "<key-id> <base64-material>",
				Action:    runSet,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// target resolves the instance to talk to, spinning up a mock agent when
// requested.
func target(cCtx *cli.Context) (interfaces.InstanceInfo, func(), error) {
	if cCtx.Bool("mock") {
		mock, err := fleetsync.NewMockInstance("mock")
		if err != nil {
			return interfaces.InstanceInfo{}, nil, err
		}
		key, err := cryptoutils.GenerateKeyMaterial()
		if err != nil {
			mock.Close()
			return interfaces.InstanceInfo{}, nil, err
		}
		key2, err := cryptoutils.GenerateKeyMaterial()
		if err != nil {
			mock.Close()
			return interfaces.InstanceInfo{}, nil, err
		}
		key3, err := cryptoutils.GenerateKeyMaterial()
		if err != nil {
			mock.Close()
			return interfaces.InstanceInfo{}, nil, err
		}
		mock.Track("/etc/lb/ticket.key", interfaces.RuntimeKeySet{
			Former:  key,
			Current: key2,
			Next:    key3,
		})
		return mock.Info(), func() { mock.Close() }, nil
	}

	instance := interfaces.InstanceInfo{
		Name:    cCtx.String("addr"),
		Addr:    cCtx.String("addr"),
		Network: cCtx.String("network"),
	}
	if err := instance.Validate(); err != nil {
		return interfaces.InstanceInfo{}, nil, err
	}
	return instance, func() {}, nil
}

func client(cCtx *cli.Context) *fleetsync.Client {
	logger := flags.SetupLogger(cCtx)
	timeout := cCtx.Duration("timeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return fleetsync.NewClient(fleetsync.NewTextChannel(timeout, logger), logger)
}

func runList(cCtx *cli.Context) error {
	instance, cleanup, err := target(cCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := client(cCtx).ListAll(cCtx.Context, instance)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Printf("%s\t%s\n", entry.KeyID, entry.Description)
	}
	return nil
}

func runShow(cCtx *cli.Context) error {
	if cCtx.NArg() != 1 {
		return fmt.Errorf("usage: synctool show <key-id>")
	}
	instance, cleanup, err := target(cCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	set, err := client(cCtx).ListOne(cCtx.Context, instance, interfaces.KeyID(cCtx.Args().First()))
	if err != nil {
		return err
	}
	fmt.Printf("key_id:  %s\n", set.KeyID)
	fmt.Printf("former:  %s\n", set.Former.Fingerprint())
	fmt.Printf("current: %s\n", set.Current.Fingerprint())
	fmt.Printf("next:    %s\n", set.Next.Fingerprint())
	return nil
}

func runSet(cCtx *cli.Context) error {
	if cCtx.NArg() != 2 {
		return fmt.Errorf("usage: synctool set <key-id> <base64-material>")
	}
	instance, cleanup, err := target(cCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	material, err := cryptoutils.NewKeyMaterial(cCtx.Args().Get(1))
	if err != nil {
		return err
	}
	keyID := interfaces.KeyID(cCtx.Args().First())

	if err := client(cCtx).Insert(cCtx.Context, instance, keyID, interfaces.KeyMaterial(material)); err != nil {
		return err
	}
	fmt.Printf("inserted %s on %s\n", material.Fingerprint(), instance.Name)
	return nil
}
