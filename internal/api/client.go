// Package api wraps the portal backend endpoints. Every non-2xx response is
// returned as a *models.APIError carrying the most useful message in the body.
// Mutations keep the reference cache and the session record consistent.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/cache"
	"github.com/LunarVagabond/phasepoint-frontend/internal/client"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
	"github.com/LunarVagabond/phasepoint-frontend/internal/session"
)

// Fallback messages used when a failed response carries nothing readable.
const (
	msgInvalidCredentials = "Invalid credentials."
	msgNotAuthenticated   = "Not authenticated"
	msgLogoutFailed       = "Failed to log out"
)

// Client is the typed API surface used by the portal.
type Client struct {
	*client.SessionClient

	logger   *logrus.Logger
	cache    *cache.ReferenceCache
	sessions *session.Store
}

// New creates an API client on top of a session-aware request client.
func New(sc *client.SessionClient, logger *logrus.Logger) *Client {
	return &Client{SessionClient: sc, logger: logger}
}

// AttachCache makes mutations invalidate the affected reference data.
func (c *Client) AttachCache(rc *cache.ReferenceCache) {
	c.cache = rc
}

// AttachSession makes identity-changing calls refresh the session record.
func (c *Client) AttachSession(s *session.Store) {
	c.sessions = s
}

// call sends one request and converts a non-2xx response into an APIError.
func (c *Client) call(
	ctx context.Context,
	path string,
	opts client.RequestOptions,
	out interface{},
	fallback string,
	fields ...string,
) error {
	resp, err := c.SendJSON(ctx, path, opts, out)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		return err
	}
	if !resp.OK() {
		return models.NewAPIError(resp.StatusCode, resp.Bytes(), fallback, fields...)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}, fallback string) error {
	return c.call(ctx, path, client.RequestOptions{}, out, fallback)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}, fallback string, fields ...string) error {
	return c.call(ctx, path, client.RequestOptions{Method: http.MethodPost, Body: body}, out, fallback, fields...)
}

func (c *Client) patch(ctx context.Context, path string, body, out interface{}, fallback string, fields ...string) error {
	return c.call(ctx, path, client.RequestOptions{Method: http.MethodPatch, Body: body}, out, fallback, fields...)
}

func (c *Client) delete(ctx context.Context, path, fallback string) error {
	return c.call(ctx, path, client.RequestOptions{Method: http.MethodDelete}, nil, fallback)
}

// refreshSession forces a new identity fetch after the backend changed it.
func (c *Client) refreshSession(ctx context.Context) {
	if c.sessions == nil {
		return
	}
	if _, ok := c.sessions.FetchSession(ctx, true); !ok {
		c.logger.Debug("Session refresh after update found no session")
	}
}

func escape(id string) string {
	return url.PathEscape(id)
}

// GetMe returns the identity of the logged-in user. A non-2xx answer is
// reported as models.ErrNotAuthenticated wrapping the APIError.
func (c *Client) GetMe(ctx context.Context) (*models.Session, error) {
	var me models.Session
	if err := c.get(ctx, "/me/", &me, msgNotAuthenticated); err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %w", models.ErrNotAuthenticated, apiErr)
		}
		return nil, err
	}
	return &me, nil
}

// Login starts a session. A 403 is retried once more, since the first POST
// from a fresh client often races the anti-forgery cookie.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	opts := client.RequestOptions{
		Method: http.MethodPost,
		Body: map[string]string{
			"username": strings.TrimSpace(username),
			"password": password, // pragma: allowlist secret
		},
	}

	resp, err := c.Send(ctx, "/auth/login/", opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		c.logger.Debug("Login rejected with 403, retrying once")
		if resp, err = c.Send(ctx, "/auth/login/", opts); err != nil {
			return nil, err
		}
	}
	if !resp.OK() {
		return nil, &models.APIError{
			StatusCode: resp.StatusCode,
			Message:    loginErrorMessage(resp.Bytes()),
			Body:       resp.Text(),
		}
	}

	var result models.LoginResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	c.refreshSession(ctx)

	c.logger.WithFields(logrus.Fields{
		"user_id":   result.ID,
		"user_type": result.UserType,
	}).Info("Logged in")

	return &result, nil
}

// loginErrorMessage only trusts a string detail from a JSON body. Any other
// JSON shape reads as bad credentials; a non-JSON body is shown as is.
func loginErrorMessage(body []byte) string {
	var payload struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
		return msgInvalidCredentials
	}
	if detail, ok := payload.Detail.(string); ok && detail != "" {
		return detail
	}
	return msgInvalidCredentials
}

// Logout ends the backend session. The local session record and every
// reference list are dropped even when the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, c.logoutURL(), nil, nil, msgLogoutFailed)

	if c.sessions != nil {
		c.sessions.Clear()
	}
	if c.cache != nil {
		c.cache.ClearAll(ctx)
	}

	if err != nil {
		c.logger.WithError(err).Warn("Backend logout failed, local state cleared")
		return err
	}
	c.logger.Info("Logged out")
	return nil
}

// logoutURL is the site-level logout endpoint, outside the /api prefix.
func (c *Client) logoutURL() string {
	base := strings.TrimRight(c.BaseURL(), "/")
	base = strings.TrimSuffix(base, "/api")
	return base + "/logout/"
}

// GetBundleHash returns the hash of the current policy bundle.
func (c *Client) GetBundleHash(ctx context.Context) (string, error) {
	var out struct {
		BundleHash string `json:"bundle_hash"`
	}
	if err := c.get(ctx, "/policies/bundle-hash/", &out, "Failed to get bundle hash"); err != nil {
		return "", err
	}
	return out.BundleHash, nil
}

// AcknowledgePolicies records that the user read the bundle identified by
// bundleHash, then refreshes the session so the policy gate reopens.
func (c *Client) AcknowledgePolicies(ctx context.Context, bundleHash string) (*models.BundleAck, error) {
	var ack models.BundleAck
	body := map[string]string{"bundle_hash": bundleHash}
	if err := c.post(ctx, "/me/acknowledge-policies/", body, &ack, "Failed to acknowledge"); err != nil {
		return nil, err
	}
	c.refreshSession(ctx)
	return &ack, nil
}

// GetEmployeeProfile returns the employee's own profile.
func (c *Client) GetEmployeeProfile(ctx context.Context) (*models.EmployeeProfile, error) {
	var profile models.EmployeeProfile
	if err := c.get(ctx, "/me/profile/", &profile, "Failed to load profile"); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateEmployeeProfile edits the employee's own profile and refreshes the session.
func (c *Client) UpdateEmployeeProfile(ctx context.Context, in models.ProfileUpdate) (*models.EmployeeProfile, error) {
	var profile models.EmployeeProfile
	if err := c.patch(ctx, "/me/profile/", in, &profile, "Failed to update profile"); err != nil {
		return nil, err
	}
	c.refreshSession(ctx)
	return &profile, nil
}

// GetCustomerProfile returns the customer organisation of the logged-in user.
func (c *Client) GetCustomerProfile(ctx context.Context) (*models.CustomerSummary, error) {
	var profile models.CustomerSummary
	if err := c.get(ctx, "/customer/profile/", &profile, "Failed to get customer profile"); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateCustomerProfile edits the customer organisation and refreshes the
// session, whose profile-complete flag may change.
func (c *Client) UpdateCustomerProfile(ctx context.Context, in models.CustomerInput) (*models.CustomerSummary, error) {
	var profile models.CustomerSummary
	if err := c.patch(ctx, "/customer/profile/", in, &profile, "Failed to update customer profile"); err != nil {
		return nil, err
	}
	c.refreshSession(ctx)
	return &profile, nil
}

// GetCustomers lists every customer.
func (c *Client) GetCustomers(ctx context.Context) ([]models.CustomerSummary, error) {
	var out []models.CustomerSummary
	if err := c.get(ctx, "/customers/", &out, "Failed to get customers"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUsers lists every user.
func (c *Client) GetUsers(ctx context.Context) ([]models.UserSummary, error) {
	var out []models.UserSummary
	if err := c.get(ctx, "/users/", &out, "Failed to get users"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUsersByType lists the users of one role.
func (c *Client) GetUsersByType(ctx context.Context, role models.Role) ([]models.UserSummary, error) {
	var out []models.UserSummary
	opts := client.RequestOptions{Query: url.Values{"user_type": []string{string(role)}}}
	if err := c.call(ctx, "/users/", opts, &out, "Failed to get users"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetGroups lists the permission groups.
func (c *Client) GetGroups(ctx context.Context) ([]models.GroupSummary, error) {
	var out []models.GroupSummary
	if err := c.get(ctx, "/groups/", &out, "Failed to get groups"); err != nil {
		return nil, err
	}
	return out, nil
}

// CanEditPolicies reports whether s may create and edit policies.
func CanEditPolicies(s *models.Session) bool {
	return s.CanEditPolicies()
}

// CanEditProcedures reports whether s may create and edit procedures.
func CanEditProcedures(s *models.Session) bool {
	return s.CanEditProcedures()
}

// CanSeeIntakeRequests reports whether s may open the intake request inbox.
func CanSeeIntakeRequests(s *models.Session) bool {
	return s.CanSeeIntakeRequests()
}
