// Package compat warns about database servers too old for some features.
package compat

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// minimums are the oldest supported server versions. Postgres and SQLite
// gained ON CONFLICT in these releases.
var minimums = map[string]string{
	sqlgen.MySQL:    "5.7.0",
	sqlgen.Postgres: "9.5.0",
	sqlgen.SQLite:   "3.24.0",
}

// Check returns a warning for each limitation of the server, or nil.
func Check(provider, serverVersion string) ([]string, error) {
	p, ok := sqlgen.NormalizeProvider(provider)
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	if p == sqlgen.MySQL && strings.Contains(strings.ToLower(serverVersion), "mariadb") {
		return nil, nil
	}

	current, err := version.NewVersion(serverVersion)
	if err != nil {
		// postgres reports versions like "16.2 (Debian 16.2-1)"
		fields := strings.Fields(serverVersion)
		if len(fields) == 0 {
			return nil, fmt.Errorf("invalid version format: %w", err)
		}
		if current, err = version.NewVersion(fields[0]); err != nil {
			return nil, fmt.Errorf("invalid version format: %w", err)
		}
	}

	var warnings []string
	minimum := version.Must(version.NewVersion(minimums[p]))
	if current.LessThan(minimum) {
		warnings = append(warnings, fmt.Sprintf("%s %s is older than the minimum supported %s", p, current, minimum))
	}
	if p == sqlgen.MySQL && !sqlgen.SupportsRowAlias(serverVersion) {
		warnings = append(warnings, fmt.Sprintf("mysql %s predates row aliases; multi-row upserts use VALUES()", current))
	}
	return warnings, nil
}
