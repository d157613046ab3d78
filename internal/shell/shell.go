// Package shell is the interactive front end of the portal client. Every
// location change goes through the navigation guard, so the shell sees the
// same redirects the browser portal would.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/LunarVagabond/phasepoint-frontend/internal/cache"
	"github.com/LunarVagabond/phasepoint-frontend/internal/guard"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
	"github.com/LunarVagabond/phasepoint-frontend/internal/session"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// Portal is the slice of the API the shell drives directly.
type Portal interface {
	Login(ctx context.Context, username, password string) (*models.LoginResult, error)
	Logout(ctx context.Context) error
	GetBundleHash(ctx context.Context) (string, error)
	AcknowledgePolicies(ctx context.Context, bundleHash string) (*models.BundleAck, error)
	Health(ctx context.Context) (*models.HealthStatus, error)
}

// Shell holds the state of one interactive session.
type Shell struct {
	portal   Portal
	sessions *session.Store
	cache    *cache.ReferenceCache
	guard    *guard.Guard
	logger   *logrus.Logger

	scanner  *bufio.Scanner
	location string

	// ttyFD is the descriptor passwords are read from without echo, or -1
	// when input is not a terminal and passwords come from the scanner.
	ttyFD int
}

// New creates a shell reading commands from in.
func New(
	portal Portal,
	sessions *session.Store,
	rc *cache.ReferenceCache,
	g *guard.Guard,
	logger *logrus.Logger,
	in io.Reader,
) *Shell {
	s := &Shell{
		portal:   portal,
		sessions: sessions,
		cache:    rc,
		guard:    g,
		logger:   logger,
		scanner:  bufio.NewScanner(in),
		location: guard.PathRoot,
		ttyFD:    -1,
	}
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		s.ttyFD = int(f.Fd())
	}
	return s
}

// Location is the path the shell currently shows.
func (s *Shell) Location() string {
	return s.location
}

// Run opens the landing location and reads commands until EOF or exit.
func (s *Shell) Run(ctx context.Context) {
	printlnFn("Phasepoint portal (type 'help' for commands)")
	s.navigate(ctx, s.location)

	for {
		printlnFn(fmt.Sprintf("portal %s %s > ", s.status(), s.location))
		if !s.scanner.Scan() {
			return
		}
		parts := strings.Fields(s.scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if !s.dispatch(ctx, parts[0], parts[1:]) {
			printlnFn("Bye!")
			return
		}
	}
}

// dispatch runs one command and reports whether the loop should go on.
func (s *Shell) dispatch(ctx context.Context, cmd string, args []string) bool {
	var err error

	switch cmd {
	case "help":
		s.help()
	case "login":
		err = s.login(ctx)
	case "logout":
		err = s.logout(ctx)
	case "whoami":
		s.whoami()
	case "go", "cd":
		if len(args) == 0 {
			printlnFn("Usage: go <path>")
			break
		}
		s.navigate(ctx, args[0])
	case "customers":
		err = s.customers(ctx, hasFlag(args, "--refresh"))
	case "users":
		err = s.users(ctx, args)
	case "groups":
		err = s.groups(ctx, hasFlag(args, "--refresh"))
	case "ack":
		err = s.acknowledge(ctx)
	case "health":
		err = s.health(ctx)
	case "exit", "quit":
		return false
	default:
		printlnFn("Unknown command:", cmd)
	}

	if err != nil {
		s.logger.WithError(err).WithField("command", cmd).Debug("Command failed")
		printlnFn("Error:", err)
	}
	return true
}

func (s *Shell) help() {
	if s.sessions.IsAuthenticated() {
		printlnFn("Available commands: go <path>, whoami, customers, users [ROLE], groups, ack, health, logout, exit")
		return
	}
	printlnFn("Available commands: go <path>, login, health, exit")
}

func (s *Shell) status() string {
	current := s.sessions.Current()
	if current == nil {
		return "guest"
	}
	return current.Username
}

// navigate moves to target through the guard and prints every redirect taken.
func (s *Shell) navigate(ctx context.Context, target string) {
	res, err := s.guard.Navigate(ctx, target)
	if err != nil {
		printlnFn("Error:", err)
		return
	}

	for _, d := range res.Chain {
		if d.Allow {
			continue
		}
		printlnFn(fmt.Sprintf("-> %s (%s)", d.Location(), d.Reason))
	}

	s.location = res.Location
	if res.Route.Title != "" {
		printlnFn(res.Route.Title)
	}
	if msg := permissionMessage(res.Location); msg != "" {
		printlnFn(msg)
	}
}

// readLine prints prompt and reads one line of input.
func (s *Shell) readLine(prompt string) (string, error) {
	printlnFn(prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.scanner.Text()), nil
}

func (s *Shell) login(ctx context.Context) error {
	if s.sessions.IsAuthenticated() {
		printlnFn("Already logged in as", s.status())
		return nil
	}

	username, err := s.readLine("-Enter username")
	if err != nil {
		return err
	}

	password, err := s.readSecret("-Enter password")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	defer wipe(password)

	if _, err := s.portal.Login(ctx, username, string(password)); err != nil {
		return err
	}
	printlnFn("Login successful")

	s.navigate(ctx, s.afterLoginTarget())
	return nil
}

// readSecret reads a password without echo on a terminal, or as the next
// input line otherwise.
func (s *Shell) readSecret(prompt string) ([]byte, error) {
	if s.ttyFD < 0 {
		line, err := s.readLine(prompt)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}
	printlnFn(prompt)
	return readPassword(s.ttyFD)
}

// afterLoginTarget honours a pending redirect, else the user's home.
func (s *Shell) afterLoginTarget() string {
	if u, err := url.Parse(s.location); err == nil {
		if target := u.Query().Get(guard.QueryRedirect); strings.HasPrefix(target, "/") {
			return target
		}
	}
	if s.sessions.IsCustomer() {
		return guard.PathCustomerHome
	}
	return guard.PathEmployeeHome
}

func (s *Shell) logout(ctx context.Context) error {
	err := s.portal.Logout(ctx)
	s.navigate(ctx, guard.PathLogin)
	if err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}

func (s *Shell) whoami() {
	current := s.sessions.Current()
	if current == nil {
		printlnFn("Not logged in")
		return
	}

	printlnFn(fmt.Sprintf("%s <%s> %s", current.Username, current.Email, current.UserType))
	if len(current.GroupsDisplay) > 0 {
		printlnFn("Groups:", strings.Join(current.GroupsDisplay, ", "))
	}
	if current.NeedsPolicyAcceptance() {
		printlnFn("Policy bundle not yet acknowledged (run 'ack')")
	}
}

func (s *Shell) customers(ctx context.Context, force bool) error {
	list, err := s.cache.FetchCustomers(ctx, force)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%d customers", len(list)))
	for _, c := range list {
		printlnFn(fmt.Sprintf("  %s  %s", c.ID, c.Name))
	}
	return nil
}

func (s *Shell) users(ctx context.Context, args []string) error {
	force := hasFlag(args, "--refresh")

	var (
		list []models.UserSummary
		err  error
	)
	if role := roleArg(args); role != "" {
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", role)
		}
		list, err = s.cache.FetchUsersByRole(ctx, role, force)
	} else {
		list, err = s.cache.FetchUsers(ctx, force)
	}
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("%d users", len(list)))
	for _, u := range list {
		printlnFn(fmt.Sprintf("  %s  %s  %s", u.ID, u.Username, u.UserType))
	}
	return nil
}

func (s *Shell) groups(ctx context.Context, force bool) error {
	list, err := s.cache.FetchGroups(ctx, force)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%d groups", len(list)))
	for _, g := range list {
		printlnFn(fmt.Sprintf("  %d  %s", g.ID, g.Name))
	}
	return nil
}

// acknowledge accepts the current policy bundle and retries the location
// the policy gate turned away, if any.
func (s *Shell) acknowledge(ctx context.Context) error {
	hash, err := s.portal.GetBundleHash(ctx)
	if err != nil {
		return err
	}
	if _, err := s.portal.AcknowledgePolicies(ctx, hash); err != nil {
		return err
	}
	printlnFn("Policies acknowledged")

	target := s.location
	if u, err := url.Parse(s.location); err == nil {
		if pending := u.Query().Get(guard.QueryRedirect); strings.HasPrefix(pending, "/") {
			target = pending
		}
	}
	s.navigate(ctx, target)
	return nil
}

func (s *Shell) health(ctx context.Context) error {
	status, err := s.portal.Health(ctx)
	if err != nil {
		return err
	}
	msg := "Backend: " + status.Status
	if status.Env != "" {
		msg += " (" + status.Env + ")"
	}
	printlnFn(msg)
	return nil
}

func permissionMessage(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	if u.Query().Get(guard.QueryError) == guard.ErrorPermissionDenied {
		return "You do not have permission to view that page."
	}
	return ""
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func roleArg(args []string) models.Role {
	for _, a := range args {
		if !strings.HasPrefix(a, "--") {
			return models.Role(strings.ToUpper(a))
		}
	}
	return ""
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
