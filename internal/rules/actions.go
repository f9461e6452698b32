package rules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neomind/edge/internal/neoerr"
)

const (
	httpActionTimeout  = 30 * time.Second
	httpLogTruncateLen = 500
)

// DeviceCommander sends a command payload to a device, for EXECUTE/SET
// actions. Satisfied by cmd/neomind's commandShim, which wraps
// *mqttadapter.Adapter.
type DeviceCommander interface {
	SendCommand(ctx context.Context, deviceID, command string, params map[string]any) error
}

// Notifier delivers a message to one or more named channels, for
// NOTIFY/ALERT actions. Satisfied by *messages.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, channels []string, title, message, severity string) error
}

// Executor runs an action list against live subsystems, logging each step.
type Executor struct {
	commander DeviceCommander
	notifier  Notifier
	httpc     *http.Client
	log       *zap.SugaredLogger
}

func NewExecutor(commander DeviceCommander, notifier Notifier, log *zap.SugaredLogger) *Executor {
	return &Executor{
		commander: commander,
		notifier:  notifier,
		httpc:     &http.Client{Timeout: httpActionTimeout},
		log:       log,
	}
}

// Run executes actions in order, stopping at the first failure.
func (ex *Executor) Run(ctx context.Context, ruleID string, actions []Action) error {
	for i, a := range actions {
		if err := ex.runOne(ctx, ruleID, a); err != nil {
			return neoerr.Communication(fmt.Sprintf("action %d (%s) of rule %s failed", i, a.Kind, ruleID), err)
		}
	}
	return nil
}

func (ex *Executor) runOne(ctx context.Context, ruleID string, a Action) error {
	switch a.Kind {
	case ActionNotify:
		return ex.execNotify(ctx, a)
	case ActionAlert:
		return ex.execAlert(ctx, a)
	case ActionLog:
		return ex.execLog(ruleID, a)
	case ActionExecute:
		return ex.execExecute(ctx, a)
	case ActionSet:
		return ex.execSet(ctx, a)
	case ActionDelay:
		return ex.execDelay(ctx, a)
	case ActionHTTP:
		return ex.execHTTP(ctx, a)
	default:
		return neoerr.Validationf("unknown action kind %q", a.Kind)
	}
}

func (ex *Executor) execNotify(ctx context.Context, a Action) error {
	if ex.notifier == nil {
		if ex.log != nil {
			ex.log.Infow("notify (no dispatcher configured, logging only)", "message", a.Message, "channels", a.Channels)
		}
		return nil
	}
	return ex.notifier.Notify(ctx, a.Channels, "", a.Message, a.Severity)
}

func (ex *Executor) execAlert(ctx context.Context, a Action) error {
	if ex.notifier == nil {
		if ex.log != nil {
			ex.log.Warnw("alert (no dispatcher configured, logging only)", "title", a.Title, "message", a.Message, "severity", a.Severity)
		}
		return nil
	}
	return ex.notifier.Notify(ctx, a.Channels, a.Title, a.Message, a.Severity)
}

func (ex *Executor) execLog(ruleID string, a Action) error {
	if ex.log == nil {
		return nil
	}
	l := ex.log.With("rule_id", ruleID, "severity", a.Severity)
	switch strings.ToLower(a.Level) {
	case "debug":
		l.Debug(a.Message)
	case "warn", "warning":
		l.Warn(a.Message)
	case "error":
		l.Error(a.Message)
	default:
		l.Info(a.Message)
	}
	return nil
}

// execExecute routes EXECUTE actions by device id namespace: ids
// beginning with "extension:" are host-process extension calls
// (reserved for a future extension runtime; currently rejected) and
// anything else is a device command dispatched via DeviceCommander.
func (ex *Executor) execExecute(ctx context.Context, a Action) error {
	if strings.HasPrefix(a.DeviceID, "extension:") {
		return neoerr.Validationf("extension calls are not supported: %q", a.DeviceID)
	}
	if ex.commander == nil {
		return neoerr.Communication("no device commander configured", nil)
	}
	return ex.commander.SendCommand(ctx, a.DeviceID, a.Command, a.Params)
}

// execSet lowers a property assignment to an EXECUTE device.set(...) call.
func (ex *Executor) execSet(ctx context.Context, a Action) error {
	if ex.commander == nil {
		return neoerr.Communication("no device commander configured", nil)
	}
	params := map[string]any{a.Property: a.Value}
	return ex.commander.SendCommand(ctx, a.DeviceID, "set", params)
}

func (ex *Executor) execDelay(ctx context.Context, a Action) error {
	t := time.NewTimer(a.Duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (ex *Executor) execHTTP(ctx context.Context, a Action) error {
	httpCtx, cancel := context.WithTimeout(ctx, httpActionTimeout)
	defer cancel()

	var body io.Reader
	if a.Body != "" {
		body = strings.NewReader(a.Body)
	}
	req, err := http.NewRequestWithContext(httpCtx, a.Method, a.URL, body)
	if err != nil {
		return neoerr.Communication("building HTTP action request", err)
	}
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ex.httpc.Do(req)
	if err != nil {
		return neoerr.Communication("HTTP action request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, httpLogTruncateLen))
	if ex.log != nil {
		ex.log.Infow("http action completed", "url", a.URL, "status", resp.StatusCode, "body", string(respBody))
	}
	if resp.StatusCode >= 400 {
		return neoerr.Communication(fmt.Sprintf("HTTP action returned status %d", resp.StatusCode), nil)
	}
	return nil
}
