package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/rileyhilliard/vmwatch/internal/errors"
	"github.com/rileyhilliard/vmwatch/internal/registry"
)

const (
	testConnectionCommand = `echo "Connection test OK"`
	testConnectionMarker  = "Connection test OK"
	validateCommand       = `echo "SSH OK"`
	validateMarker        = "SSH OK"
)

// TestConnection dials label and runs an echo round trip.
func (m *Monitor) TestConnection(ctx context.Context, label string) ConnectionResult {
	cred, err := m.registry.Resolve(ctx, label)
	if err != nil {
		return ConnectionResult{Label: label, Status: StatusNotFound, Message: "VM not found", Code: errors.ErrNotFound}
	}

	res := m.roundTrip(ctx, cred, testConnectionCommand, testConnectionMarker)
	res.Label = label
	if res.Status == StatusSuccess {
		res.Message = "Connection successful"
	}
	return res
}

// ValidateCredential checks an unregistered credential by dialing it and
// running an echo. Nothing is stored.
func (m *Monitor) ValidateCredential(ctx context.Context, cred registry.Credential) ConnectionResult {
	cred = cred.Normalize()
	if cred.Label == "" {
		cred.Label = cred.Address
	}
	if err := cred.Validate(); err != nil {
		return ConnectionResult{Label: cred.Label, Status: StatusError, Message: errors.Reason(err), Code: errors.ErrConfig}
	}

	res := m.roundTrip(ctx, cred, validateCommand, validateMarker)
	res.Label = cred.Label
	if res.Status == StatusSuccess {
		res.Message = "SSH connection validated"
	}
	return res
}

func (m *Monitor) roundTrip(ctx context.Context, cred registry.Credential, cmd, marker string) ConnectionResult {
	start := time.Now()

	dialCtx, cancel := context.WithTimeout(ctx, TestConnectTimeout)
	session, err := m.runner.Open(dialCtx, cred)
	cancel()
	if err != nil {
		code := errors.Classify(err)
		return ConnectionResult{Status: StatusError, Message: connectionMessage(code, err), Code: code}
	}
	defer session.Close()

	out, _ := session.Run(ctx, cmd)
	if err := session.Err(); err != nil {
		code := errors.Classify(err)
		return ConnectionResult{Status: StatusError, Message: connectionMessage(code, err), Code: code}
	}
	if !strings.Contains(out, marker) {
		return ConnectionResult{Status: StatusError, Message: "Test command failed", Code: errors.ErrExec}
	}
	return ConnectionResult{Status: StatusSuccess, Latency: time.Since(start)}
}

func connectionMessage(code string, err error) string {
	switch code {
	case errors.ErrAuth:
		return "SSH authentication failed, check the credentials"
	case errors.ErrTimeout:
		return "Connection timed out, check the address and port"
	case errors.ErrUnreachable:
		return "Host unreachable: " + errors.Reason(err)
	case errors.ErrHostKey:
		return "Host key mismatch: " + errors.Reason(err)
	}
	return "Connection error: " + errors.Reason(err)
}
