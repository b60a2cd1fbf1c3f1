package browser

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tabgrouper/internal/tabs"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, worker restarted).
var transientHints = []string{
	"target closed",
	"session closed",
	"no session with given id",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
}

// workerTypes are the target types an extension background context runs as.
var workerTypes = map[string]bool{
	"service_worker":  true,
	"background_page": true,
}

type workerSession struct {
	info      target.Info
	mu        sync.Mutex
	sessionID string // CDP session ID from Target.attachToTarget
}

// CDPBrowser implements Browser by evaluating chrome.* calls inside the
// companion extension's background service worker.
type CDPBrowser struct {
	cdpURL      string
	extensionID string
	evalTimeout time.Duration

	mu          sync.Mutex
	cdp         *rawCDP
	worker      *workerSession
	unsubscribe func()

	// evalMu serialises evaluations so one run's calls reach the worker in
	// order.
	evalMu sync.Mutex
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewCDPBrowser creates a client for the browser at cdpURL. An empty
// extensionID accepts the first extension background target found.
func NewCDPBrowser(cdpURL, extensionID string, evalTimeout time.Duration) *CDPBrowser {
	return &CDPBrowser{
		cdpURL:      cdpURL,
		extensionID: strings.TrimSpace(extensionID),
		evalTimeout: evalTimeout,
	}
}

func (c *CDPBrowser) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *CDPBrowser) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("browser connect start", "cdp_url", c.cdpURL, "extension_id", c.extensionID)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}
	c.unsubscribe = c.cdp.registerEventHandler("Target.detachedFromTarget", c.onDetached)

	if err := c.syncWorkerLocked(ctx); err != nil {
		slog.Error("browser initial worker sync failed", "error", err)
		c.cleanupLocked()
		return err
	}

	slog.Info("browser connect ok", "cdp_url", c.cdpURL, "worker_url", c.worker.info.URL)
	return nil
}

func (c *CDPBrowser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

func (c *CDPBrowser) cleanupLocked() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.cdp != nil {
		if w := c.worker; w != nil {
			w.mu.Lock()
			if w.sessionID != "" {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := c.cdp.detachFromTarget(ctx, w.sessionID); err != nil {
					slog.Debug("browser detach failed", "session_id", w.sessionID, "error", err)
				}
				cancel()
				w.sessionID = ""
			}
			w.mu.Unlock()
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.worker = nil
}

// onDetached drops the cached session when the worker is stopped by the
// browser, so the next evaluation re-attaches.
func (c *CDPBrowser) onDetached(_ string, params json.RawMessage) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if json.Unmarshal(params, &p) != nil || p.SessionID == "" {
		return
	}
	c.mu.Lock()
	w := c.worker
	c.mu.Unlock()
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.sessionID == p.SessionID {
		w.sessionID = ""
		slog.Debug("browser worker session detached", "session_id", p.SessionID)
	}
	w.mu.Unlock()
}

func (c *CDPBrowser) Windows(ctx context.Context) ([]tabs.Window, error) {
	var out []tabs.Window
	if err := c.eval(ctx, jsListWindows(), &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CDPBrowser) Tabs(ctx context.Context) ([]tabs.Tab, error) {
	var out []tabs.Tab
	if err := c.eval(ctx, jsListTabs(), &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CDPBrowser) TabGroups(ctx context.Context) ([]tabs.TabGroup, error) {
	var out []tabs.TabGroup
	if err := c.eval(ctx, jsListGroups(), &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CDPBrowser) TabsInGroup(ctx context.Context, groupID int) ([]tabs.Tab, error) {
	var out []tabs.Tab
	if err := c.eval(ctx, jsTabsInGroup(groupID), &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupTabs is not retried: a lost response may still have grouped the tabs.
func (c *CDPBrowser) GroupTabs(ctx context.Context, tabIDs []int) (int, error) {
	if len(tabIDs) == 0 {
		return 0, newError(CodeValidation, "at least one tab id is required", nil)
	}
	var groupID int
	if err := c.eval(ctx, jsGroupTabs(tabIDs), &groupID, false); err != nil {
		return 0, err
	}
	return groupID, nil
}

func (c *CDPBrowser) UpdateGroup(ctx context.Context, groupID int, title string, color tabs.Color) error {
	if !color.Valid() {
		return newError(CodeValidation, "unsupported group color: "+string(color), nil)
	}
	return c.eval(ctx, jsUpdateGroup(groupID, title, string(color)), nil, true)
}

// eval runs js on the worker. With retry set, one transient failure triggers
// a reconnect or worker re-sync and a second attempt.
func (c *CDPBrowser) eval(ctx context.Context, js string, out any, retry bool) error {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	session, info, err := c.resolveWorker(ctx)
	if err == nil {
		err = c.evalOnSession(ctx, session, info.TargetID, js, out)
	}
	if err == nil {
		return nil
	}
	if !retry || !c.shouldRetry(err) {
		return err
	}

	slog.Warn("browser eval retry after transient failure", "error", err)
	if c.asCode(err, CodeCDPUnavailable) {
		if recErr := c.reconnect(ctx); recErr != nil {
			slog.Error("browser reconnect failed during retry", "error", recErr)
			return recErr
		}
	} else if syncErr := c.refreshWorker(ctx); syncErr != nil {
		slog.Warn("browser worker refresh failed during retry", "error", syncErr)
	}

	session, info, err = c.resolveWorker(ctx)
	if err != nil {
		return err
	}
	return c.evalOnSession(ctx, session, info.TargetID, js, out)
}

func (c *CDPBrowser) evalOnSession(ctx context.Context, session *workerSession, targetID target.ID, js string, out any) error {
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := c.ensureSession(ctx, cdp, session, targetID)
	if err != nil {
		return err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, c.evalTimeout)
	defer evalCancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		slog.Warn("browser eval failed", "target_id", targetID, "error", err)
		// Reset session so a fresh attach happens on retry.
		session.mu.Lock()
		session.sessionID = ""
		session.mu.Unlock()

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return newError(CodeEvalTimeout, "evaluation timed out", err)
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return newError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// ensureSession returns a CDP session ID for the worker, attaching if needed.
func (c *CDPBrowser) ensureSession(ctx context.Context, cdp *rawCDP, session *workerSession, targetID target.ID) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.sessionID != "" {
		return session.sessionID, nil
	}

	sid, err := cdp.attachToTarget(ctx, targetID)
	if err != nil {
		return "", newError(CodeCDPUnavailable, "attach to worker failed", err)
	}
	session.sessionID = sid
	slog.Debug("browser worker session attached", "target_id", targetID, "session_id", sid)
	return sid, nil
}

func (c *CDPBrowser) resolveWorker(ctx context.Context) (*workerSession, target.Info, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, target.Info{}, err
	}
	c.mu.Lock()
	w := c.worker
	c.mu.Unlock()
	if w != nil {
		return w, w.info, nil
	}
	if err := c.refreshWorker(ctx); err != nil {
		return nil, target.Info{}, err
	}
	c.mu.Lock()
	w = c.worker
	c.mu.Unlock()
	if w == nil {
		return nil, target.Info{}, newError(CodeExtensionNotFound, "extension worker not found", nil)
	}
	return w, w.info, nil
}

func (c *CDPBrowser) refreshWorker(ctx context.Context) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncWorkerLocked(ctx)
}

func (c *CDPBrowser) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *CDPBrowser) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.cdp != nil
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.reconnect(ctx)
}

// syncWorkerLocked finds the extension's background target and keeps the
// existing session when the target is unchanged.
func (c *CDPBrowser) syncWorkerLocked(ctx context.Context) error {
	if c.cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return newError(CodeCDPUnavailable, "failed to list targets", err)
	}

	var found *target.Info
	for _, t := range targets {
		if c.matchesWorker(t) {
			found = t
			break
		}
	}
	if found == nil {
		c.worker = nil
		return newError(CodeExtensionNotFound, "extension worker not found; is the extension loaded and its service worker running?", nil)
	}

	if c.worker != nil && c.worker.info.TargetID == found.TargetID {
		c.worker.info = *found
		return nil
	}
	c.worker = &workerSession{info: *found}
	slog.Debug("browser worker sync", "targets", len(targets), "target_id", found.TargetID, "url", found.URL)
	return nil
}

func (c *CDPBrowser) matchesWorker(t *target.Info) bool {
	if t == nil || !workerTypes[t.Type] {
		return false
	}
	prefix := "chrome-extension://"
	if c.extensionID != "" {
		prefix += c.extensionID + "/"
	}
	return strings.HasPrefix(t.URL, prefix)
}

func (c *CDPBrowser) shouldRetry(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case CodeCDPUnavailable, CodeExtensionNotFound:
		return true
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}

func (c *CDPBrowser) asCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}

// Probe checks that the worker target exposes the tab APIs.
func (c *CDPBrowser) Probe(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.eval(ctx, jsProbe(), &out, true); err != nil {
		return "", err
	}
	return out.ID, nil
}
