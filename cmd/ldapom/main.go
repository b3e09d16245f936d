// Package main provides a command line driver for the directory object manager.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// run executes the CLI and returns an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 1
	}

	cmd, ok := commands[args[1]]
	if !ok {
		switch args[1] {
		case "help", "-h", "--help":
			printUsage(stdout)
			return 0
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(stderr, "Run 'ldapom help' for usage.")
		return 1
	}

	return cmd(ctx, args[1], args[2:], stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: ldapom <command> [flags] <dn> [args]

Commands:
  show    <dn> [attribute...]          Print an entry as JSON
  create  <dn> <attribute=value>...    Create an entry
  set     <dn> <attribute> [value...]  Replace the values of an attribute
  add     <dn> <attribute> <value>...  Add values to an attribute
  remove  <dn> <attribute> <value>...  Remove values from an attribute
  clear   <dn> <attribute>             Remove every value of an attribute
  delete  <dn>                         Delete an entry
  move    <dn> <new-parent>            Move an entry below a new parent

Common flags:
  -env string    .env file to load (default ".env" when present)
  -type string   Object type (user, group, ou, container); empty for raw attributes

Environment:
  LDAP_URLS, LDAP_BASEDN, LDAP_USERNAME, LDAP_PASSWORD, LDAP_SCHEMA_FLAVOR
  LDAPOM_LOG             Log level (TRACE, DEBUG, INFO, WARN, ERROR, OFF)
  LDAPOM_LOG_<SUBSYSTEM> Per-subsystem log level (LDAP, POOL, MANAGER, HYDRATOR, AUDIT)
  AUDIT_DATABASE_URL     PostgreSQL URL; when set every change is recorded
  LDAPOM_OPERATOR        Operator name recorded with audit events
`)
}
