package provisioner

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/richlink-iot/meshctl/at"
)

// Node is one provisioned node as reported by AT+NL. Records are rebuilt
// fresh on every listing; the module is authoritative.
type Node struct {
	Index        int
	Address      string
	ElementCount int
	Online       bool
}

// ListNodes queries the module for its provisioned nodes. The reply is a
// burst of NL-MSG lines with no terminator, so the listing collects
// whatever arrives within a fixed quiescence window. Under heavy traffic
// a line can miss the window; callers needing certainty should list again.
func (p *Provisioner) ListNodes(ctx context.Context) ([]Node, error) {
	var mu sync.Mutex
	var nodes []Node

	id := p.dispatcher.AddHandler(at.TypeNodeList, func(_ context.Context, msg *at.Message) {
		if len(msg.Params) < 4 {
			return
		}
		index, err := strconv.Atoi(msg.Params[0])
		if err != nil {
			p.logger.Debug("node list line with bad index", "raw", msg.Raw)
			return
		}
		elements, _ := strconv.Atoi(msg.Params[2])
		node := Node{
			Index:        index,
			Address:      msg.Params[1],
			ElementCount: elements,
			Online:       msg.Params[3] == "1",
		}

		mu.Lock()
		nodes = append(nodes, node)
		mu.Unlock()
	})
	defer p.dispatcher.RemoveHandler(id)

	if err := CmdListNodes().Fire(ctx, p.link); err != nil {
		return nil, err
	}

	if err := sleep(ctx, p.settle); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	p.logger.Info("listed nodes", "count", len(nodes))
	return nodes, nil
}

// RemoveNode removes the node at the given listing index from the mesh.
func (p *Provisioner) RemoveNode(ctx context.Context, nodeIndex int) error {
	result, err := CmdRemoveNode(nodeIndex).ExecuteWithRetry(ctx, p.link, provisionTimeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("remove node %d: %s", nodeIndex, result.Err)
	}

	p.logger.Info("node removed", "index", nodeIndex)
	return nil
}

// ClearNetwork removes every provisioned node from the mesh.
func (p *Provisioner) ClearNetwork(ctx context.Context) error {
	p.logger.Warn("clearing mesh network, all nodes will be removed")

	result, err := CmdClearNetwork().ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("clear network: %s", result.Err)
	}

	p.logger.Info("mesh network cleared")
	return nil
}
