package web

import (
	"fmt"
	"path"
	"strings"
)

// Fixed routes served regardless of configuration.
const (
	HealthPath  = "/healthz"
	SignOutPath = "/sign_out"
	APIPrefix   = "/api"
)

// fixedRoutes cannot double as the configurable auth pages.
var fixedRoutes = []string{"/", HealthPath, SignOutPath, DashboardPath}

// ValidateRoutes reports whether the sign-in and sign-up pages can be mounted
// next to the fixed routes without clashing.
func ValidateRoutes(signInPath, signUpPath string) error {
	pages := []struct{ name, path string }{
		{"sign-in", signInPath},
		{"sign-up", signUpPath},
	}
	for _, page := range pages {
		if err := validatePagePath(page.path); err != nil {
			return fmt.Errorf("%s path: %w", page.name, err)
		}
	}
	if signInPath == signUpPath {
		return fmt.Errorf("sign-in and sign-up paths are both %s", signInPath)
	}
	return nil
}

func validatePagePath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%q must start with /", p)
	}
	if path.Clean(p) != p {
		return fmt.Errorf("%q is not a clean path", p)
	}
	// ServeMux would read these as wildcards or a method separator
	if strings.ContainsAny(p, "{} \t") {
		return fmt.Errorf("%q contains pattern characters", p)
	}
	for _, route := range fixedRoutes {
		if p == route {
			return fmt.Errorf("%s is a reserved route", p)
		}
	}
	if p == APIPrefix || strings.HasPrefix(p, APIPrefix+"/") {
		return fmt.Errorf("%s is under the API prefix %s", p, APIPrefix)
	}
	return nil
}
