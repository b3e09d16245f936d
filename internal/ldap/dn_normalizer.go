package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ValidateDNSyntax validates that a string is a properly formatted Distinguished Name.
func ValidateDNSyntax(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid DN syntax: %w", err)
	}

	return nil
}

// EqualDN reports whether two DNs name the same entry, ignoring case.
func EqualDN(a, b string) (bool, error) {
	parsedA, err := ldap.ParseDN(a)
	if err != nil {
		return false, fmt.Errorf("invalid DN syntax: %w", err)
	}

	parsedB, err := ldap.ParseDN(b)
	if err != nil {
		return false, fmt.Errorf("invalid DN syntax: %w", err)
	}

	return parsedA.EqualFold(parsedB), nil
}

// IsDNChild checks if childDN is a direct or indirect child of parentDN.
func IsDNChild(childDN, parentDN string) (bool, error) {
	parsedChild, err := ldap.ParseDN(childDN)
	if err != nil {
		return false, fmt.Errorf("invalid child DN syntax: %w", err)
	}

	parsedParent, err := ldap.ParseDN(parentDN)
	if err != nil {
		return false, fmt.Errorf("invalid parent DN syntax: %w", err)
	}

	return parsedParent.AncestorOfFold(parsedChild), nil
}
