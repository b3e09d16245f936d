package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/isometry/ldapom/internal/audit"
	"github.com/isometry/ldapom/internal/event"
	"github.com/isometry/ldapom/internal/hydrator"
	ldapclient "github.com/isometry/ldapom/internal/ldap"
	"github.com/isometry/ldapom/internal/manager"
	"github.com/isometry/ldapom/internal/object"
	"github.com/isometry/ldapom/internal/schema"
)

const (
	EnvLogLevel    = "LDAPOM_LOG"
	EnvOperator    = "LDAPOM_OPERATOR"
	EnvAuditDBURL  = "AUDIT_DATABASE_URL"
	defaultEnvFile = ".env"
)

// errUsage marks errors caused by bad arguments; usage is printed after them.
var errUsage = errors.New("usage")

// newClient is replaced in tests.
var newClient = ldapclient.NewClient

type command func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"show":   withSession(1, -1, "<dn> [attribute...]", showCmd),
	"create": withSession(2, -1, "<dn> <attribute=value>...", createCmd),
	"set":    withSession(2, -1, "<dn> <attribute> [value...]", setCmd),
	"add":    withSession(3, -1, "<dn> <attribute> <value>...", addCmd),
	"remove": withSession(3, -1, "<dn> <attribute> <value>...", removeCmd),
	"clear":  withSession(2, 2, "<dn> <attribute>", clearCmd),
	"delete": withSession(1, 1, "<dn>", deleteCmd),
	"move":   withSession(2, 2, "<dn> <new-parent>", moveCmd),
}

// session holds the collaborators one command runs against.
type session struct {
	client     ldapclient.Client
	schemas    *schema.Registry
	manager    *manager.ObjectManager
	objectType string
	stdout     io.Writer
	closers    []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// object returns an object of the session's type located at dn.
func (s *session) object(dn string) *object.Object {
	return object.New(s.objectType, map[string]any{object.AttributeDN: dn})
}

// withSession parses the common flags, checks the positional argument count
// (max < 0 for unbounded), opens a session and runs fn.
func withSession(minArgs, maxArgs int, synopsis string, fn func(ctx context.Context, s *session, args []string) error) command {
	return func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		envFile := fs.String("env", "", "Environment file to load (default \".env\" when present)")
		objectType := fs.String("type", "", "Object type (user, group, ou, container); empty for raw attributes")
		fs.Usage = func() {
			fmt.Fprintf(stderr, "Usage: ldapom %s [flags] %s\n\nFlags:\n", name, synopsis)
			fs.PrintDefaults()
		}

		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			return 1
		}

		rest := fs.Args()
		if len(rest) < minArgs || (maxArgs >= 0 && len(rest) > maxArgs) {
			fs.Usage()
			return 1
		}

		ctx = withLogging(ctx)

		s, err := openSession(ctx, *envFile, *objectType, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer s.Close()

		if err := fn(ctx, s, rest); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			if errors.Is(err, errUsage) {
				fs.Usage()
			}
			return 1
		}
		return 0
	}
}

// withLogging roots a tflog logger in ctx and registers every subsystem.
func withLogging(ctx context.Context) context.Context {
	level := hclog.LevelFromString(os.Getenv(EnvLogLevel))
	if level == hclog.NoLevel {
		level = hclog.Warn
	}

	ctx = tfsdklog.NewRootProviderLogger(ctx,
		tfsdklog.WithLogName("ldapom"),
		tfsdklog.WithLevel(level),
		tfsdklog.WithoutLocation(),
	)

	for _, name := range ldapclient.Subsystems {
		ctx = tflog.NewSubsystem(ctx, name,
			tflog.WithLevelFromEnv(EnvLogLevel, strings.ToUpper(name)))
	}
	return ctx
}

func openSession(ctx context.Context, envFile, objectType string, stdout io.Writer) (*session, error) {
	if envFile == "" {
		if _, err := os.Stat(defaultEnvFile); err == nil {
			envFile = defaultEnvFile
		}
	}

	config, err := ldapclient.LoadConfigFromEnv(envFile)
	if err != nil {
		return nil, err
	}

	s := &session{
		schemas:    schema.DefaultRegistry(),
		objectType: objectType,
		stdout:     stdout,
	}

	if objectType != "" {
		if _, err := s.schemas.Get(config.SchemaFlavor, objectType); err != nil {
			return nil, err
		}
	}

	bus := event.NewBus()
	if url := os.Getenv(EnvAuditDBURL); url != "" {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		recorder := audit.NewRecorder(pool)
		if err := recorder.EnsureTable(ctx); err != nil {
			s.Close()
			return nil, err
		}
		recorder.Subscribe(bus)
	}

	client, err := newClient(ctx, config)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	s.closers = append(s.closers, func() { _ = client.Close() })

	s.manager = manager.NewObjectManager(client, s.schemas, bus)
	return s, nil
}

// auditContext tags ctx with the operator and a per-invocation trace ID.
func auditContext(ctx context.Context) context.Context {
	operator := os.Getenv(EnvOperator)
	if operator == "" {
		operator = os.Getenv(ldapclient.EnvUsername)
	}
	if operator != "" {
		ctx = audit.WithOperator(ctx, operator)
	}
	return audit.WithTraceID(ctx, fmt.Sprintf("ldapom-%d", os.Getpid()))
}

func showCmd(ctx context.Context, s *session, args []string) error {
	dn, selected := args[0], args[1:]

	h := hydrator.NewAttributeHydrator()
	h.SetOperationType(schema.OperationRead)
	h.SetSelectedAttributes(selected...)
	h.SetLogger(ldapclient.NewTFLogger(ctx, ldapclient.SubsystemHydrator))

	req := &ldapclient.SearchRequest{
		BaseDN: dn,
		Scope:  ldapclient.ScopeBaseObject,
		Filter: "(objectClass=*)",
	}

	if s.objectType != "" {
		sch, err := s.schemas.Get(s.client.SchemaFlavor(), s.objectType)
		if err != nil {
			return err
		}
		h.SetSchemas(sch)
		for _, name := range selected {
			if wire, ok := sch.LDAPName(name); ok {
				req.Attributes = append(req.Attributes, wire)
			} else {
				req.Attributes = append(req.Attributes, name)
			}
		}
	} else {
		req.Attributes = selected
	}

	result, err := s.client.Search(ctx, req)
	if err != nil {
		return err
	}
	if len(result.Entries) == 0 {
		return ldapclient.NewNotFoundError("show", dn, "entry not found")
	}

	attrs, err := h.HydrateFromLDAP(hydrator.EntryFromLDAP(result.Entries[0]))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(s.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(attrs)
}

func createCmd(ctx context.Context, s *session, args []string) error {
	obj := s.object(args[0])
	for _, assignment := range args[1:] {
		name, value, ok := strings.Cut(assignment, "=")
		if !ok || name == "" {
			return fmt.Errorf("%w: expected attribute=value, got %q", errUsage, assignment)
		}
		if current, exists := obj.Get(name); exists {
			obj.Refresh(map[string]any{name: append(object.Values(current), value)})
		} else {
			obj.Refresh(map[string]any{name: value})
		}
	}
	return s.manager.Create(auditContext(ctx), obj)
}

func setCmd(ctx context.Context, s *session, args []string) error {
	obj := s.object(args[0])
	obj.Set(args[1], stringValues(args[2:]))
	return s.manager.Persist(auditContext(ctx), obj)
}

func addCmd(ctx context.Context, s *session, args []string) error {
	obj := s.object(args[0])
	obj.Add(args[1], stringValues(args[2:])...)
	return s.manager.Persist(auditContext(ctx), obj)
}

func removeCmd(ctx context.Context, s *session, args []string) error {
	obj := s.object(args[0])
	obj.Remove(args[1], stringValues(args[2:])...)
	return s.manager.Persist(auditContext(ctx), obj)
}

func clearCmd(ctx context.Context, s *session, args []string) error {
	obj := s.object(args[0])
	obj.Reset(args[1])
	return s.manager.Persist(auditContext(ctx), obj)
}

func deleteCmd(ctx context.Context, s *session, args []string) error {
	return s.manager.Delete(auditContext(ctx), s.object(args[0]))
}

func moveCmd(ctx context.Context, s *session, args []string) error {
	if s.objectType == "" {
		return fmt.Errorf("%w: move requires -type", errUsage)
	}
	return s.manager.Move(auditContext(ctx), s.object(args[0]), args[1])
}

func stringValues(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
