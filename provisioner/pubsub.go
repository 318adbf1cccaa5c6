package provisioner

import (
	"context"
	"fmt"

	"github.com/richlink-iot/meshctl/state"
)

// Publish/subscribe configuration. The module firmware exposes no query
// command for these settings, so successful writes are mirrored into the
// local state store for read-back convenience. The store is a passive
// cache; the module remains authoritative for actual routing behavior.

// SetPublish sets the publish address for a model on a node.
func (p *Provisioner) SetPublish(ctx context.Context, nodeAddr string, elementIdx int, modelID, publishAddr string, appKeyIdx int) error {
	result, err := CmdSetPublish(nodeAddr, elementIdx, modelID, publishAddr, appKeyIdx).
		ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("set publish on %s: %s", nodeAddr, result.Err)
	}

	if p.store != nil {
		err := p.store.SetPublish(nodeAddr, state.Publish{
			ElementIndex: elementIdx,
			ModelID:      modelID,
			Address:      publishAddr,
			AppKeyIndex:  appKeyIdx,
		})
		if err != nil {
			p.logger.Warn("record publish setting", "address", nodeAddr, "error", err)
		}
	}

	p.logger.Info("publish set", "address", nodeAddr, "publish", publishAddr, "model", modelID)
	return nil
}

// ClearPublish removes the publish address for a model on a node.
func (p *Provisioner) ClearPublish(ctx context.Context, nodeAddr string, elementIdx int, modelID string, appKeyIdx int) error {
	result, err := CmdClearPublish(nodeAddr, elementIdx, modelID, appKeyIdx).
		ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("clear publish on %s: %s", nodeAddr, result.Err)
	}

	if p.store != nil {
		if err := p.store.ClearPublish(nodeAddr); err != nil {
			p.logger.Warn("clear recorded publish setting", "address", nodeAddr, "error", err)
		}
	}

	p.logger.Info("publish cleared", "address", nodeAddr, "model", modelID)
	return nil
}

// AddSubscription subscribes a model on a node to a group address.
func (p *Provisioner) AddSubscription(ctx context.Context, nodeAddr string, elementIdx int, modelID, groupAddr string) error {
	result, err := CmdAddSubscription(nodeAddr, elementIdx, modelID, groupAddr).
		ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("add subscription on %s: %s", nodeAddr, result.Err)
	}

	if p.store != nil {
		err := p.store.AddSubscription(nodeAddr, state.Subscription{
			ElementIndex: elementIdx,
			ModelID:      modelID,
			GroupAddress: groupAddr,
		})
		if err != nil {
			p.logger.Warn("record subscription", "address", nodeAddr, "error", err)
		}
	}

	p.logger.Info("subscription added", "address", nodeAddr, "group", groupAddr, "model", modelID)
	return nil
}

// RemoveSubscription unsubscribes a model on a node from a group address.
func (p *Provisioner) RemoveSubscription(ctx context.Context, nodeAddr string, elementIdx int, modelID, groupAddr string) error {
	result, err := CmdRemoveSubscription(nodeAddr, elementIdx, modelID, groupAddr).
		ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("remove subscription on %s: %s", nodeAddr, result.Err)
	}

	if p.store != nil {
		err := p.store.RemoveSubscription(nodeAddr, state.Subscription{
			ElementIndex: elementIdx,
			ModelID:      modelID,
			GroupAddress: groupAddr,
		})
		if err != nil {
			p.logger.Warn("remove recorded subscription", "address", nodeAddr, "error", err)
		}
	}

	p.logger.Info("subscription removed", "address", nodeAddr, "group", groupAddr, "model", modelID)
	return nil
}

// SendData sends vendor model data to a unicast or group address.
func (p *Provisioner) SendData(ctx context.Context, dst string, elementIdx, appKeyIdx int, ack bool, data string) error {
	result, err := CmdSendData(dst, elementIdx, appKeyIdx, ack, data).
		ExecuteWithRetry(ctx, p.link, p.timeout, p.maxRetries)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("send data to %s: %s", dst, result.Err)
	}
	return nil
}

// NodeConfig returns the locally recorded publish/subscribe settings for a
// node address. Settings applied by other tools are invisible here.
func (p *Provisioner) NodeConfig(nodeAddr string) (state.NodeConfig, error) {
	if p.store == nil {
		return state.NodeConfig{}, fmt.Errorf("no state store configured")
	}
	return p.store.Node(nodeAddr)
}
