package provisioner

import (
	"context"
	"fmt"
)

// provisionStep names the states of the provisioning sequence, in order.
type provisionStep int

const (
	stepBearerOpening provisionStep = iota
	stepProvisioning
	stepAddingAppKey
	stepBindingModel
)

func (s provisionStep) String() string {
	switch s {
	case stepBearerOpening:
		return "BearerOpening"
	case stepProvisioning:
		return "Provisioning"
	case stepAddingAppKey:
		return "AddingAppKey"
	case stepBindingModel:
		return "BindingModel"
	default:
		return fmt.Sprintf("provisionStep(%d)", int(s))
	}
}

// Provision admits the device with the given UUID into the mesh network
// and returns the unicast address the module assigned to it.
//
// The sequence is: open a PB-ADV bearer to the device, provision it (the
// assigned address is the first PROV response parameter), distribute the
// application key, and bind the default model to that key. The first two
// steps are hard requirements; a failure aborts. AppKey distribution and
// model binding are soft steps: a provisioned node is already minimally
// usable without them, so failures there are logged and the sequence
// continues. Soft steps are not rolled back.
func (p *Provisioner) Provision(ctx context.Context, deviceUUID string) (string, error) {
	p.logger.Info("provisioning device", "uuid", deviceUUID)

	p.logger.Info("provision step", "step", stepBearerOpening)
	result, err := CmdOpenBearer(deviceUUID).ExecuteWithRetry(ctx, p.link, bearerTimeout, p.maxRetries)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("open bearer to %s: %s", deviceUUID, result.Err)
	}

	if err := sleep(ctx, p.bearerSettle); err != nil {
		return "", err
	}

	p.logger.Info("provision step", "step", stepProvisioning)
	result, err = CmdProvision().ExecuteWithRetry(ctx, p.link, provisionTimeout, p.maxRetries)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("provision %s: %s", deviceUUID, result.Err)
	}

	addr := result.Param(0, "")
	if addr == "" {
		return "", fmt.Errorf("provision %s: response carried no unicast address: %q", deviceUUID, result.Raw)
	}
	p.logger.Info("device provisioned", "uuid", deviceUUID, "address", addr)

	p.logger.Info("provision step", "step", stepAddingAppKey)
	result, err = CmdAddAppKey(addr, 0, 0).ExecuteWithRetry(ctx, p.link, configTimeout, p.maxRetries)
	if err != nil {
		return "", err
	}
	if !result.Success {
		// The key may already be present from an earlier attempt.
		p.logger.Warn("add appkey failed, continuing", "address", addr, "error", result.Err)
	}

	p.logger.Info("provision step", "step", stepBindingModel)
	result, err = CmdBindModel(addr, 0, DefaultModelID, 0).ExecuteWithRetry(ctx, p.link, configTimeout, p.maxRetries)
	if err != nil {
		return "", err
	}
	if !result.Success {
		p.logger.Warn("bind model failed, continuing", "address", addr, "model", DefaultModelID, "error", result.Err)
	}

	p.logger.Info("provisioning complete", "uuid", deviceUUID, "address", addr)
	return addr, nil
}
