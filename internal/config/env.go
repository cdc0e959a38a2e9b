package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envIncludePatterns   = "SCHEMA_COMPARISON_INCLUDE_PATTERNS"
	envExcludePatterns   = "SCHEMA_COMPARISON_EXCLUDE_PATTERNS"
	envRegexPattern      = "SCHEMA_COMPARISON_REGEX_PATTERN"
	envSchemaReportFile  = "SCHEMA_COMPARISON_REPORT_FILE"
	envEventsReportFile  = "EVENTS_COMPARISON_REPORT_FILE"
	envTotalRecords      = "TOTAL_RECORDS_LIMIT"
	envCSVSeparator      = "CSV_SEPARATOR"
	envOutputDir         = "DOCS_OUTPUT_DIR"
	envWorkers           = "ENVDIFF_WORKERS"
	envExtractTimeout    = "ENVDIFF_EXTRACT_TIMEOUT"
	envExtraEnvironments = "ENVDIFF_ENVIRONMENTS"
)

// readEnv merges the .env file (if any) with the process environment.
func readEnv(envFile string, environ []string) (map[string]string, error) {
	vars := map[string]string{}
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}
	return vars, nil
}

func connectionVarPattern(envs EnvironmentSet) *regexp.Regexp {
	alts := make([]string, 0, len(envs))
	for _, name := range envs.Names() {
		alts = append(alts, regexp.QuoteMeta(name))
	}
	return regexp.MustCompile(`^(` + strings.Join(alts, "|") + `)_([A-Z][A-Z0-9]{1,7})_(V[0-9]+)_(NAME|HOST|PORT|SERVICE_NAME|USER|PASSWORD|OWNER|DRIVER)$`)
}

// connectionsFromEnv groups <ENV>_<LOC>_<VER>_<FIELD> variables into connections.
// The environment has no declaration order, so the result is sorted by key.
func connectionsFromEnv(vars map[string]string, envs EnvironmentSet) ([]Connection, error) {
	pattern := connectionVarPattern(envs)
	grouped := map[string]map[string]string{}
	for name, value := range vars {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		id := m[1] + "_" + m[2] + "_" + m[3]
		if grouped[id] == nil {
			grouped[id] = map[string]string{}
		}
		grouped[id][m[4]] = value
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	conns := make([]Connection, 0, len(ids))
	for _, id := range ids {
		key, err := ParseKey(id, envs)
		if err != nil {
			return nil, err
		}
		fields := grouped[id]
		conn := Connection{
			Key:         key,
			Name:        fields["NAME"],
			Driver:      fields["DRIVER"],
			Host:        fields["HOST"],
			ServiceName: fields["SERVICE_NAME"],
			User:        fields["USER"],
			Password:    fields["PASSWORD"],
			Owner:       fields["OWNER"],
		}
		if p := strings.TrimSpace(fields["PORT"]); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("connection %s: invalid port %q", id, p)
			}
			conn.Port = port
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func applyEnvSettings(cfg *Config, vars map[string]string) error {
	envFilter := Filter{
		Include: splitList(vars[envIncludePatterns]),
		Exclude: splitList(vars[envExcludePatterns]),
		Regex:   strings.TrimSpace(vars[envRegexPattern]),
	}
	if !envFilter.IsZero() {
		cfg.Filter = envFilter
	}
	if v := vars[envSchemaReportFile]; v != "" {
		cfg.Reports.Schema = v
	}
	if v := vars[envEventsReportFile]; v != "" {
		cfg.Reports.Events = v
	}
	if v := vars[envCSVSeparator]; v != "" {
		cfg.CSVSeparator = v
	}
	if v := vars[envOutputDir]; v != "" {
		cfg.OutputDir = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{envTotalRecords, &cfg.Limits.TotalRecordsLimit},
		{envWorkers, &cfg.Workers},
	}
	for _, it := range ints {
		raw := strings.TrimSpace(vars[it.name])
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", it.name, raw)
		}
		*it.dst = n
	}

	if raw := strings.TrimSpace(vars[envExtractTimeout]); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", envExtractTimeout, err)
		}
		cfg.ExtractTimeout = d
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanFilter(f Filter) Filter {
	clean := func(in []string) []string {
		var out []string
		for _, s := range in {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return Filter{Include: clean(f.Include), Exclude: clean(f.Exclude), Regex: strings.TrimSpace(f.Regex)}
}
