package app

import (
	"fmt"
	"os"
)

// Validate prints the configuration validation report and returns an
// error when any check fails.
func (a *App) Validate() error {
	fmt.Fprintln(os.Stdout, "=== Configuration Validation ===")

	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stdout, "[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(os.Stdout, "[OK] %s\n", name)
	}

	report("general", a.Config.Validate())
	report("notification", a.Config.ValidateNotification())

	if failed {
		return fmt.Errorf("configuration is invalid")
	}
	fmt.Fprintln(os.Stdout, "\nConfiguration is valid")
	return nil
}
