package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrPanelUnavailable means the control panel could not be reached
	// within the bounded retry budget. Retryable by a later trigger.
	ErrPanelUnavailable = errors.New("control panel unavailable")
	// ErrAlreadyExists is returned by CreateUser when the username is
	// taken. Callers that confirmed it is the same logical user treat
	// it as success.
	ErrAlreadyExists = errors.New("already exists")
)

// HestiaCP command return codes
const (
	hestiaOK          = 0
	hestiaNotExists   = 3
	hestiaExists      = 4
	hestiaSuspended   = 6
	hestiaUnsuspended = 7
)

// Retry policy for transient panel failures: 3 attempts, exponential
// backoff from 500ms
const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// HestiaClient calls the HestiaCP command API. Every operation is safe
// to retry: creates re-check existence first, deletes and suspends
// tolerate the target already being in the requested state.
type HestiaClient struct {
	apiURL     string
	username   string
	accessKey  string
	serverIP   string
	httpClient *http.Client
}

// NewHestiaClient creates a new control-panel client
func NewHestiaClient(apiURL, username, accessKey, serverIP string) *HestiaClient {
	return &HestiaClient{
		apiURL:    apiURL,
		username:  username,
		accessKey: accessKey,
		serverIP:  serverIP,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UserExists checks whether a panel user exists
func (c *HestiaClient) UserExists(ctx context.Context, username string) (bool, error) {
	code, body, err := c.call(ctx, "v-list-user", username)
	if err != nil {
		return false, err
	}
	switch code {
	case hestiaOK:
		return true, nil
	case hestiaNotExists:
		return false, nil
	}
	return false, fmt.Errorf("v-list-user returned code %d: %s", code, body)
}

// DomainExists checks whether a web domain exists under a user
func (c *HestiaClient) DomainExists(ctx context.Context, username, domain string) (bool, error) {
	code, body, err := c.call(ctx, "v-list-web-domain", username, domain)
	if err != nil {
		return false, err
	}
	switch code {
	case hestiaOK:
		return true, nil
	case hestiaNotExists:
		return false, nil
	}
	return false, fmt.Errorf("v-list-web-domain returned code %d: %s", code, body)
}

// CreateUserParams describes the account to create. Username and
// Password are generated when empty.
type CreateUserParams struct {
	Email    string
	Username string
	Password string
	Package  string
}

// CreateUserResult carries the effective credentials
type CreateUserResult struct {
	Username string
	Password string
	Package  string
}

// CreateUser creates a panel user. A derived username is re-checked with
// UserExists immediately before creating, so a retry with a previously
// generated name does not hit a duplicate-create error.
func (c *HestiaClient) CreateUser(ctx context.Context, params *CreateUserParams) (*CreateUserResult, error) {
	username := params.Username
	derived := false
	if username == "" {
		username = DeriveUsername(params.Email)
		derived = true
	}

	password := params.Password
	if password == "" {
		var err error
		password, err = generatePassword(16)
		if err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
	}

	// Existence check right before create keeps the operation idempotent
	// under retry
	exists, err := c.UserExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		if derived {
			// collision on a derived name, pick another
			username = DeriveUsername(params.Email)
		} else {
			return &CreateUserResult{Username: username, Package: params.Package}, ErrAlreadyExists
		}
	}

	log.Printf("[Hestia] Creating user %s (package: %s)", username, params.Package)

	code, body, err := c.call(ctx, "v-add-user", username, password, params.Email, params.Package)
	if err != nil {
		return nil, err
	}
	switch code {
	case hestiaOK:
		return &CreateUserResult{Username: username, Password: password, Package: params.Package}, nil
	case hestiaExists:
		return &CreateUserResult{Username: username, Package: params.Package}, ErrAlreadyExists
	}
	return nil, fmt.Errorf("v-add-user returned code %d: %s", code, body)
}

// CreateWebDomain creates a web domain under a user. Idempotent: when
// the domain already exists this is a no-op.
func (c *HestiaClient) CreateWebDomain(ctx context.Context, username, domain string) error {
	exists, err := c.DomainExists(ctx, username, domain)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("[Hestia] Domain %s already exists for %s, skipping create", domain, username)
		return nil
	}

	log.Printf("[Hestia] Creating web domain %s for %s", domain, username)

	args := []string{username, domain}
	if c.serverIP != "" {
		args = append(args, c.serverIP)
	}

	code, body, err := c.call(ctx, "v-add-web-domain", args...)
	if err != nil {
		return err
	}
	switch code {
	case hestiaOK, hestiaExists:
		return nil
	}
	return fmt.Errorf("v-add-web-domain returned code %d: %s", code, body)
}

// SetupSSL requests a Let's Encrypt certificate. Failure here is
// expected when DNS does not yet point at the server; callers record it
// as a warning only.
func (c *HestiaClient) SetupSSL(ctx context.Context, username, domain string) error {
	log.Printf("[Hestia] Requesting SSL for %s (%s)", domain, username)

	code, body, err := c.call(ctx, "v-add-letsencrypt-domain", username, domain)
	if err != nil {
		return err
	}
	if code != hestiaOK {
		return fmt.Errorf("v-add-letsencrypt-domain returned code %d: %s", code, body)
	}
	return nil
}

// DeleteUser removes a panel user. Used as the compensating action when
// domain creation fails after user creation succeeded.
func (c *HestiaClient) DeleteUser(ctx context.Context, username string) error {
	log.Printf("[Hestia] Deleting user %s", username)

	code, body, err := c.call(ctx, "v-delete-user", username)
	if err != nil {
		return err
	}
	switch code {
	case hestiaOK, hestiaNotExists:
		return nil
	}
	return fmt.Errorf("v-delete-user returned code %d: %s", code, body)
}

// SuspendUser suspends a panel user. Suspending an already-suspended
// user is not an error.
func (c *HestiaClient) SuspendUser(ctx context.Context, username string) error {
	code, body, err := c.call(ctx, "v-suspend-user", username)
	if err != nil {
		return err
	}
	switch code {
	case hestiaOK, hestiaSuspended:
		return nil
	}
	return fmt.Errorf("v-suspend-user returned code %d: %s", code, body)
}

// UnsuspendUser reactivates a panel user, tolerating the user already
// being active
func (c *HestiaClient) UnsuspendUser(ctx context.Context, username string) error {
	code, body, err := c.call(ctx, "v-unsuspend-user", username)
	if err != nil {
		return err
	}
	switch code {
	case hestiaOK, hestiaUnsuspended:
		return nil
	}
	return fmt.Errorf("v-unsuspend-user returned code %d: %s", code, body)
}

// call executes one panel command with bounded retry on transport
// failures. The panel signals success with return code 0; any other code
// comes back to the caller for interpretation.
func (c *HestiaClient) call(ctx context.Context, cmd string, args ...string) (int, string, error) {
	form := url.Values{}
	form.Set("user", c.username)
	form.Set("password", c.accessKey)
	form.Set("returncode", "yes")
	form.Set("cmd", cmd)
	for i, arg := range args {
		form.Set(fmt.Sprintf("arg%d", i+1), arg)
	}

	var lastErr error
	backoff := baseBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		code, body, err := c.post(ctx, form)
		if err == nil {
			return code, body, nil
		}
		lastErr = err
		log.Printf("[Hestia] %s attempt %d/%d failed: %v", cmd, attempt, maxAttempts, err)
	}

	return 0, "", fmt.Errorf("%w: %s: %v", ErrPanelUnavailable, cmd, lastErr)
}

func (c *HestiaClient) post(ctx context.Context, form url.Values) (int, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return 0, "", fmt.Errorf("panel returned status %d", resp.StatusCode)
	}

	body := strings.TrimSpace(string(respBody))
	code, err := strconv.Atoi(body)
	if err != nil {
		// Some commands return data instead of a bare code; a 200 with
		// non-numeric body is a success with output.
		if resp.StatusCode == http.StatusOK {
			return hestiaOK, body, nil
		}
		return 0, body, fmt.Errorf("unexpected panel response (status %d): %s", resp.StatusCode, body)
	}

	return code, body, nil
}

// DeriveUsername builds a panel username from an email: sanitized
// local-part prefix plus a short random suffix. Deterministic enough to
// stay recognizable, random enough to avoid collisions.
func DeriveUsername(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 10 {
			break
		}
	}

	prefix := b.String()
	if prefix == "" {
		prefix = "user"
	}
	// panel usernames must not start with a digit
	if prefix[0] >= '0' && prefix[0] <= '9' {
		prefix = "u" + prefix
	}

	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err == nil {
		return prefix + hex.EncodeToString(suffix)
	}
	return prefix
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
