package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidKey         = errors.New("invalid connection key")
	ErrUnknownEnvironment = errors.New("unknown environment")
)

// Environment is the deployment tier encoded as the first segment of a composite key.
type Environment string

const (
	EnvDES Environment = "DES"
	EnvPRE Environment = "PRE"
	EnvPRO Environment = "PRO"
)

// EnvironmentSet is the set of environments accepted when parsing composite keys.
type EnvironmentSet map[Environment]struct{}

// DefaultEnvironments returns the built-in DES/PRE/PRO set.
func DefaultEnvironments() EnvironmentSet {
	return EnvironmentSet{EnvDES: {}, EnvPRE: {}, EnvPRO: {}}
}

// With returns a copy of the set extended with extra environment names.
func (s EnvironmentSet) With(extra ...string) EnvironmentSet {
	out := make(EnvironmentSet, len(s)+len(extra))
	for e := range s {
		out[e] = struct{}{}
	}
	for _, e := range extra {
		e = strings.ToUpper(strings.TrimSpace(e))
		if e != "" {
			out[Environment(e)] = struct{}{}
		}
	}
	return out
}

func (s EnvironmentSet) Contains(e Environment) bool {
	_, ok := s[e]
	return ok
}

// Names returns the environments sorted, for building patterns and messages.
func (s EnvironmentSet) Names() []string {
	names := make([]string, 0, len(s))
	for e := range s {
		names = append(names, string(e))
	}
	sort.Strings(names)
	return names
}

// Key is the composite identity of a connection: environment, location and version.
type Key struct {
	Env      Environment
	Location string
	Version  string
}

// String renders the key as ENV_LOC_VER, the form filters are matched against.
func (k Key) String() string {
	return string(k.Env) + "_" + k.Location + "_" + k.Version
}

var (
	locationPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,7}$`)
	versionPattern  = regexp.MustCompile(`^V[0-9]+$`)
)

// ParseKey parses "PRO_NYC_V8" into a Key, validating the environment eagerly.
func ParseKey(raw string, envs EnvironmentSet) (Key, error) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w %q: expected ENV_LOCATION_VERSION", ErrInvalidKey, raw)
	}
	env := Environment(parts[0])
	if !envs.Contains(env) {
		return Key{}, fmt.Errorf("%w %q in key %q (known: %s)", ErrUnknownEnvironment, parts[0], raw, strings.Join(envs.Names(), ", "))
	}
	if !locationPattern.MatchString(parts[1]) {
		return Key{}, fmt.Errorf("%w %q: bad location code %q", ErrInvalidKey, raw, parts[1])
	}
	if !versionPattern.MatchString(parts[2]) {
		return Key{}, fmt.Errorf("%w %q: bad version tag %q", ErrInvalidKey, raw, parts[2])
	}
	return Key{Env: env, Location: parts[1], Version: parts[2]}, nil
}

// Connection is one configured database. It is never modified after loading.
type Connection struct {
	Key         Key
	Name        string
	Driver      string
	Host        string
	Port        int
	ServiceName string
	User        string
	Password    string
	Owner       string
}

// ID is the composite key string; it is the identity used everywhere downstream.
func (c Connection) ID() string {
	return c.Key.String()
}

// DisplayName falls back to the composite key when no NAME was configured.
func (c Connection) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID()
}

// WithPassword returns a copy of c carrying password.
func (c Connection) WithPassword(password string) Connection {
	c.Password = password
	return c
}

// MaskedDSN describes the connection target without the password.
func (c Connection) MaskedDSN() string {
	u := url.URL{
		Scheme: c.Driver,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.ServiceName,
	}
	if c.User != "" {
		u.User = url.User(c.User)
	}
	return u.String()
}
