package utils

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/11904212/pcc-demo-api/processor"
)

var EtcDir = "."

// ServiceConfig holds the settings of the engine service. Every field
// has a usable zero value.
type ServiceConfig struct {
	PoolSize    int    `json:"pool_size" yaml:"pool_size"`
	MaxInFlight int    `json:"max_in_flight" yaml:"max_in_flight"`
	TempDir     string `json:"temp_dir" yaml:"temp_dir"`

	MemcacheServers []string `json:"memcache_servers" yaml:"memcache_servers"`
	// CacheTTL is in seconds.
	CacheTTL int32 `json:"cache_ttl" yaml:"cache_ttl"`

	// ProfilesDSN points at a Postgres database holding extra
	// collection profiles.
	ProfilesDSN string `json:"profiles_dsn" yaml:"profiles_dsn"`

	MaxRecvMsgSize int                        `json:"max_recv_msg_size" yaml:"max_recv_msg_size"`
	Validation     processor.ValidationConfig `json:"validation" yaml:"validation"`
	MetricsLogDir  string                     `json:"metrics_log_dir" yaml:"metrics_log_dir"`
}

// Config is the configuration of one namespace: service settings and
// the collection profiles it publishes.
type Config struct {
	ServiceConfig ServiceConfig                  `json:"service_config" yaml:"service_config"`
	Collections   []*processor.CollectionProfile `json:"collections" yaml:"collections"`
}

const DefaultRecvMsgSize = 10 * 1024 * 1024
const DefaultMaxInFlight = 64

var configNames = map[string]bool{"config.json": true, "config.yaml": true, "config.yml": true}

// LoadConfigFile decodes a YAML or JSON document, chosen by file
// extension, into config and fills defaults.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{ServiceConfig: ServiceConfig{Validation: processor.DefaultValidationConfig()}}
	cfg, err := os.ReadFile(configFile)
	if err != nil {
		return errors.Wrapf(err, "reading config file %s", configFile)
	}

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(cfg, config)
	default:
		err = json.Unmarshal(cfg, config)
	}
	if err != nil {
		return errors.Wrapf(err, "parsing config document %s", configFile)
	}

	sc := &config.ServiceConfig
	if sc.PoolSize <= 0 {
		sc.PoolSize = processor.DefaultPoolSize
	}
	if sc.MaxInFlight <= 0 {
		sc.MaxInFlight = DefaultMaxInFlight
	}
	if sc.MaxRecvMsgSize <= 0 {
		sc.MaxRecvMsgSize = DefaultRecvMsgSize
	}
	if sc.TempDir == "" {
		sc.TempDir = os.TempDir()
	}
	if sc.Validation.AreaTolerance <= 0 {
		sc.Validation.AreaTolerance = processor.DefaultValidationConfig().AreaTolerance
	}

	if _, err := processor.NewProfileRegistry(config.Collections...); err != nil {
		return errors.Wrapf(err, "config file %s", configFile)
	}
	return nil
}

// LoadAllConfigFiles walks rootDir and loads every config file, keyed
// by its directory relative to rootDir.
func LoadAllConfigFiles(rootDir string) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && configNames[info.Name()] {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			if _, dup := configMap[relPath]; dup {
				return errors.Errorf("more than one config file under namespace %s", relPath)
			}
			log.Infof("Loading config file: %s under namespace: %s", path, relPath)

			config := &Config{}
			if e := config.LoadConfigFile(path); e != nil {
				return e
			}
			configMap[relPath] = config
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = errors.Errorf("no config file found under %s", rootDir)
	}
	return configMap, err
}

// RootService returns the service settings of the root namespace, or
// defaults when only sub namespaces are configured.
func RootService(configMap map[string]*Config) ServiceConfig {
	if c, ok := configMap["."]; ok {
		return c.ServiceConfig
	}
	return ServiceConfig{
		PoolSize:       processor.DefaultPoolSize,
		MaxInFlight:    DefaultMaxInFlight,
		MaxRecvMsgSize: DefaultRecvMsgSize,
		TempDir:        os.TempDir(),
		Validation:     processor.DefaultValidationConfig(),
	}
}

// BuildRegistry merges the built in profiles, the profiles of every
// namespace and extra into one registry. A collection configured more
// than once fails, except that configured profiles replace built in
// ones.
func BuildRegistry(configMap map[string]*Config, extra ...*processor.CollectionProfile) (*processor.ProfileRegistry, error) {
	byID := make(map[string]*processor.CollectionProfile)
	for _, p := range processor.DefaultProfiles() {
		byID[p.Collection] = p
	}

	seen := make(map[string]string)
	add := func(origin string, p *processor.CollectionProfile) error {
		if prev, dup := seen[p.Collection]; dup {
			return errors.Wrapf(processor.ErrValidation, "collection %s configured in %s and %s", p.Collection, prev, origin)
		}
		seen[p.Collection] = origin
		byID[p.Collection] = p
		return nil
	}

	for ns, c := range configMap {
		for _, p := range c.Collections {
			if err := add("namespace "+ns, p); err != nil {
				return nil, err
			}
		}
	}
	for _, p := range extra {
		if err := add("profiles table", p); err != nil {
			return nil, err
		}
	}

	profiles := make([]*processor.CollectionProfile, 0, len(byID))
	for _, p := range byID {
		profiles = append(profiles, p)
	}
	return processor.NewProfileRegistry(profiles...)
}

// WatchConfig reloads the collection profiles on SIGHUP. load builds
// the new registry; when it fails the current registry stays in place.
func WatchConfig(logger *log.Entry, profiles *processor.SwappableProfiles, load func() (*processor.ProfileRegistry, error)) func() {
	sighup := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-sighup:
				logger.Info("Caught SIGHUP, reloading config...")
				reg, err := load()
				if err != nil {
					logger.Errorf("Error in loading config files: %v", err)
					continue
				}
				profiles.Swap(reg)
				logger.Infof("collections: %s", strings.Join(reg.Collections(), ", "))
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sighup)
		close(done)
	}
}
