// Package scripts maps test selectors to the scanner's PHP entry points and
// runs them against a local project.
package scripts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/proc"
)

// Fallback runs every suite; unknown selectors resolve to it.
const Fallback = "run_all_tests.php"

// DefaultInterpreter runs the scripts.
const DefaultInterpreter = "php"

var catalogue = map[string]string{
	"routing":  "test_routing.php",
	"visitor":  "test_user_journey_visitor.php",
	"user":     "test_user_journey_user.php",
	"admin":    "test_user_journey_admin.php",
	"database": "test_install_db.php",
	"audit":    "run_with_audit.php",
	"all":      Fallback,
}

// Selectors lists the known selectors in menu order.
func Selectors() []string {
	return []string{"routing", "visitor", "user", "admin", "database", "audit", "all"}
}

// For returns the script file for a selector.
func For(selector string) string {
	if script, ok := catalogue[selector]; ok {
		return script
	}
	return Fallback
}

// Known reports whether selector is in the catalogue.
func Known(selector string) bool {
	_, ok := catalogue[selector]
	return ok
}

// Location says where the scripts live and what runs them.
type Location struct {
	Dir         string
	Interpreter string
}

func (l Location) interpreter() string {
	if l.Interpreter == "" {
		return DefaultInterpreter
	}
	return l.Interpreter
}

// RunLocal runs the selected script with projectPath as its working
// directory and blocks until it exits.
func RunLocal(ctx context.Context, runner proc.Runner, loc Location, projectPath, selector string) (*proc.Result, error) {
	script := filepath.Join(loc.Dir, For(selector))
	if _, err := os.Stat(script); err != nil {
		return nil, errs.Errorf(errs.NotFound, "test script %s not found; expected the scanner in %s", For(selector), loc.Dir)
	}
	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, errs.FromFS(err, "project directory")
	}
	if !info.IsDir() {
		return nil, errs.Errorf(errs.Invalid, "project %s is not a directory", projectPath)
	}
	return runner.Run(ctx, loc.interpreter(), []string{script}, projectPath)
}
