package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/richlink-iot/meshctl/provisioner"
)

// CLI maps subcommands onto provisioner operations and prints tabular
// output. All protocol behavior lives in the provisioner package; this
// layer only parses arguments and formats results.
type CLI struct {
	Provisioner  *provisioner.Provisioner
	Logger       *slog.Logger
	Out          io.Writer
	ScanDuration time.Duration
}

const usage = `Usage: meshctl [flags] <command> [args]

Commands:
  version                                          Show module firmware version
  role                                             Show module role
  scan                                             Scan for unprovisioned devices
  provision <uuid>                                 Provision a device by UUID
  restart                                          Reboot the module
  nodes                                            List provisioned nodes
  remove <index>                                   Remove a node by listing index
  reset                                            Clear the whole mesh network
  publish set <node> <element> <model> <addr>      Set a model publish address
  publish clear <node> <element> <model>           Clear a model publish address
  subscribe add <node> <element> <model> <group>   Subscribe a model to a group
  subscribe remove <node> <element> <model> <group>
  send <dst> <element> <appkey> <ack> <data>       Send vendor model data
  config <node>                                    Show locally recorded settings
`

// Run executes one subcommand. args[0] is the command name.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.Out, usage)
		return nil
	}

	command, args := args[0], args[1:]

	switch command {
	case "help":
		fmt.Fprint(c.Out, usage)
		return nil

	case "version":
		version, err := c.Provisioner.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.Out, version)
		return nil

	case "role":
		role, err := c.Provisioner.Role(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.Out, role)
		return nil

	case "scan":
		devices, err := c.Provisioner.ScanDevices(ctx, c.ScanDuration, nil)
		if err != nil {
			return err
		}
		c.printDevices(devices)
		return nil

	case "provision":
		if len(args) != 1 {
			return fmt.Errorf("usage: provision <uuid>")
		}
		addr, err := c.Provisioner.Provision(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "provisioned %s at %s\n", args[0], addr)
		return nil

	case "restart":
		return c.Provisioner.Restart(ctx)

	case "nodes":
		nodes, err := c.Provisioner.ListNodes(ctx)
		if err != nil {
			return err
		}
		c.printNodes(nodes)
		return nil

	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <index>")
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid node index %q", args[0])
		}
		return c.Provisioner.RemoveNode(ctx, index)

	case "reset":
		return c.Provisioner.ClearNetwork(ctx)

	case "publish":
		return c.runPublish(ctx, args)

	case "subscribe":
		return c.runSubscribe(ctx, args)

	case "send":
		if len(args) != 5 {
			return fmt.Errorf("usage: send <dst> <element> <appkey> <ack> <data>")
		}
		element, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid element index %q", args[1])
		}
		appKey, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid appkey index %q", args[2])
		}
		return c.Provisioner.SendData(ctx, args[0], element, appKey, args[3] == "1", args[4])

	case "config":
		if len(args) != 1 {
			return fmt.Errorf("usage: config <node>")
		}
		node, err := c.Provisioner.NodeConfig(args[0])
		if err != nil {
			return err
		}
		if node.Publish != nil {
			fmt.Fprintf(c.Out, "publish: element %d model %s -> %s (appkey %d)\n",
				node.Publish.ElementIndex, node.Publish.ModelID, node.Publish.Address, node.Publish.AppKeyIndex)
		}
		for _, sub := range node.Subscriptions {
			fmt.Fprintf(c.Out, "subscribe: element %d model %s <- %s\n",
				sub.ElementIndex, sub.ModelID, sub.GroupAddress)
		}
		return nil

	default:
		fmt.Fprint(c.Out, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *CLI) runPublish(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: publish set|clear ...")
	}

	switch args[0] {
	case "set":
		if len(args) != 5 {
			return fmt.Errorf("usage: publish set <node> <element> <model> <addr>")
		}
		element, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid element index %q", args[2])
		}
		return c.Provisioner.SetPublish(ctx, args[1], element, args[3], args[4], 0)

	case "clear":
		if len(args) != 4 {
			return fmt.Errorf("usage: publish clear <node> <element> <model>")
		}
		element, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid element index %q", args[2])
		}
		return c.Provisioner.ClearPublish(ctx, args[1], element, args[3], 0)

	default:
		return fmt.Errorf("unknown publish action %q", args[0])
	}
}

func (c *CLI) runSubscribe(ctx context.Context, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("usage: subscribe add|remove <node> <element> <model> <group>")
	}

	element, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid element index %q", args[2])
	}

	switch args[0] {
	case "add":
		return c.Provisioner.AddSubscription(ctx, args[1], element, args[3], args[4])
	case "remove":
		return c.Provisioner.RemoveSubscription(ctx, args[1], element, args[3], args[4])
	default:
		return fmt.Errorf("unknown subscribe action %q", args[0])
	}
}

func (c *CLI) printDevices(devices []provisioner.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(c.Out, "no devices found")
		return
	}

	w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MAC\tRSSI\tUUID")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%d\t%s\n", d.MAC, d.RSSI, d.UUID)
	}
	w.Flush()
}

func (c *CLI) printNodes(nodes []provisioner.Node) {
	if len(nodes) == 0 {
		fmt.Fprintln(c.Out, "no provisioned nodes")
		return
	}

	w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tADDRESS\tELEMENTS\tONLINE")
	for _, n := range nodes {
		fmt.Fprintf(w, "%d\t%s\t%d\t%t\n", n.Index, n.Address, n.ElementCount, n.Online)
	}
	w.Flush()
}
