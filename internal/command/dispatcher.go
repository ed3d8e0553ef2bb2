package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/nerrad567/smarttile-ops/internal/backend"
	"github.com/nerrad567/smarttile-ops/internal/bridge"
)

// defaultFadeMs is applied to light commands that do not specify a fade.
const defaultFadeMs = 500

// commandQoS is the bridge publish QoS for advisory command messages.
const commandQoS = 1

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// restAPI is the backend surface the dispatcher uses. Satisfied by
// *backend.Client.
type restAPI interface {
	SetLight(ctx context.Context, cmd backend.SetLightCommand) error
	SetColorProfile(ctx context.Context, cmd backend.ColorProfileCommand) error
	ApprovePairing(ctx context.Context, approval backend.PairingApproval) error
}

// publisher is the bridge surface the dispatcher uses. Satisfied by
// *bridge.Client.
type publisher interface {
	IsConnected() bool
	Publish(topic string, payload any, qos byte) error
}

// Dispatcher issues device commands.
//
// Every command goes to the backend over REST first; that call is the
// source of truth and its error propagates to the caller. When the bridge
// channel happens to be connected, an equivalent command is additionally
// published for lower-latency device feedback. The publish is advisory:
// a failure is logged and swallowed, since the backend already accepted
// the command. No command retries; callers reissue on failure if they
// care.
type Dispatcher struct {
	rest   restAPI
	bridge publisher
	logger Logger
}

// NewDispatcher creates a command dispatcher. bridge may be nil, in which
// case commands go over REST only.
func NewDispatcher(rest restAPI, bridgeClient publisher, logger Logger) *Dispatcher {
	return &Dispatcher{rest: rest, bridge: bridgeClient, logger: logger}
}

// SetLight applies a light command to a node.
func (d *Dispatcher) SetLight(ctx context.Context, cmd backend.SetLightCommand) error {
	if cmd.FadeDuration <= 0 {
		cmd.FadeDuration = defaultFadeMs
	}

	if err := d.rest.SetLight(ctx, cmd); err != nil {
		return err
	}

	commandID := uuid.NewString()
	d.logger.Info("light command accepted",
		"command_id", commandID, "node_id", cmd.NodeID, "site_id", cmd.SiteID)

	d.publish(bridge.NodeCommandTopic(cmd.SiteID, cmd.NodeID), map[string]any{
		"type":          "set_light",
		"command_id":    commandID,
		"rgbw":          cmd.RGBW,
		"brightness":    cmd.Brightness,
		"fade_duration": cmd.FadeDuration,
	})

	return nil
}

// TurnOff turns a node's light fully off.
func (d *Dispatcher) TurnOff(ctx context.Context, siteID, nodeID string) error {
	brightness := 0
	return d.SetLight(ctx, backend.SetLightCommand{
		NodeID:     nodeID,
		SiteID:     siteID,
		RGBW:       &backend.RGBW{},
		Brightness: &brightness,
	})
}

// SetColorProfile applies a color profile to every node in a zone.
func (d *Dispatcher) SetColorProfile(ctx context.Context, cmd backend.ColorProfileCommand) error {
	if err := d.rest.SetColorProfile(ctx, cmd); err != nil {
		return err
	}

	commandID := uuid.NewString()
	d.logger.Info("color profile accepted",
		"command_id", commandID, "zone_id", cmd.ZoneID, "profile", cmd.Profile)

	d.publish(bridge.ZoneCommandTopic(cmd.SiteID, cmd.ZoneID), map[string]any{
		"type":       "color_profile",
		"command_id": commandID,
		"profile":    cmd.Profile,
		"rgbw":       cmd.RGBW,
	})

	return nil
}

// ApprovePairing accepts or rejects a node pairing request.
func (d *Dispatcher) ApprovePairing(ctx context.Context, approval backend.PairingApproval) error {
	if err := d.rest.ApprovePairing(ctx, approval); err != nil {
		return err
	}

	d.logger.Info("pairing decision accepted",
		"node_id", approval.NodeID, "approve", approval.Approve)

	verdict := "pairing_rejected"
	if approval.Approve {
		verdict = "pairing_approved"
	}
	d.publish(bridge.NodeCommandTopic(approval.SiteID, approval.NodeID), map[string]any{
		"type":    verdict,
		"zone_id": approval.ZoneID,
	})

	return nil
}

// publish performs the advisory bridge publish. Never returns an error.
func (d *Dispatcher) publish(topic string, payload any) {
	if d.bridge == nil || !d.bridge.IsConnected() {
		return
	}
	if err := d.bridge.Publish(topic, payload, commandQoS); err != nil {
		d.logger.Warn("advisory publish failed", "topic", topic, "error", err)
	}
}
