// Package config loads the process configuration from environment
// variables, following the same file-base-plus-env-override split the
// teacher's config package used, generalized to an all-env-var surface.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds one process's runtime configuration. Every field is sourced
// from an environment variable; Load fills in the documented defaults for
// anything unset.
type Config struct {
	Socket         string // listen address, e.g. "0.0.0.0:4000"
	ExternalURL    string // controls the auth cookie's Secure flag
	DBPath         string // snapshot file path
	DBBackupFolder string // dated-folder backup destination
	DBInit         string // optional mirror URL fetched in preference to DBPath at startup
	CachePath      string
	KeyFile        string // path to the 32-byte symmetric token key
	LasnaMode      string // "server", or the tunnel server address to dial as a device; slepau-lasna exits if empty
	LogLevel       string
	Release        bool   // compact (not pretty-printed) snapshots when true
	MirrorBean     string // shared secret guarding the /mirror snapshot-clone endpoint

	// Tunnel-only fields, read by cmd/slepau-lasna. DevicePort/ClientPort
	// and AdminSocket are only meaningful when LasnaMode is "server";
	// DeviceID/LocalAddr only when it is a tunnel server address instead.
	DevicePort  string // device control/data listen addr, default ":4001"
	ClientPort  string // external HTTP listen addr, default ":4002"
	AdminSocket string // super-only device-list listen addr, default ":4003"
	AuditDSN    string // sqlite DSN for the connect/disconnect audit log
	DeviceID    string // this device's proquint id, device-client mode only
	LocalAddr   string // local service this device forwards to, default tunnel.DefaultLocalAddr

	OtelEnabled  bool   // export traces via OTLP HTTP
	OtelEndpoint string // OTLP HTTP collector endpoint, e.g. "localhost:4318"
}

const (
	defaultSocket   = "0.0.0.0:4000"
	defaultDBPath   = "./db/data.json"
	defaultBackup   = "./db/backups"
	defaultCache    = "./cache"
	defaultKeyFile  = "./db/key"
	defaultLogLevel = "info"

	// defaultMirrorBean matches the constant every site shipped with
	// historically; set DB_MIRROR_BEAN to something site-specific before
	// exposing /mirror outside a trusted network.
	defaultMirrorBean = "alkjgblnvcxlk_BANDFLKj"

	defaultDevicePort  = ":4001"
	defaultClientPort  = ":4002"
	defaultAdminSocket = ":4003"
	defaultAuditDSN    = "./db/audit.sqlite"
)

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() *Config {
	c := &Config{
		Socket:         getEnvDefault("SOCKET", defaultSocket),
		ExternalURL:    os.Getenv("URL"),
		DBPath:         getEnvDefault("DB_PATH", defaultDBPath),
		DBBackupFolder: getEnvDefault("DB_BACKUP_FOLDER", defaultBackup),
		DBInit:         os.Getenv("DB_INIT"),
		CachePath:      getEnvDefault("CACHE_PATH", defaultCache),
		KeyFile:        getEnvDefault("K_PRIVATE", defaultKeyFile),
		LasnaMode:      os.Getenv("LASNA_MODE"),
		LogLevel:       getEnvDefault("LOG_LEVEL", defaultLogLevel),
		Release:        getEnvBool("RELEASE", false),
		MirrorBean:     getEnvDefault("DB_MIRROR_BEAN", defaultMirrorBean),
		DevicePort:     getEnvDefault("DEVICE_PORT", defaultDevicePort),
		ClientPort:     getEnvDefault("CLIENT_PORT", defaultClientPort),
		AdminSocket:    getEnvDefault("LASNA_ADMIN_SOCKET", defaultAdminSocket),
		AuditDSN:       getEnvDefault("LASNA_AUDIT_DSN", defaultAuditDSN),
		DeviceID:       os.Getenv("LASNA_DEVICE_ID"),
		LocalAddr:      os.Getenv("LASNA_LOCAL_ADDR"),
		OtelEnabled:    getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:   getEnvDefault("OTEL_ENDPOINT", "localhost:4318"),
	}
	return c
}

// LoadKey reads the 32-byte symmetric token key from KeyFile, erroring if
// absent rather than silently minting one — callers run the admin CLI's
// key-generation command once up front instead.
func (c *Config) LoadKey() ([]byte, error) {
	data, err := os.ReadFile(c.KeyFile)
	if err == nil {
		if len(data) != 32 {
			return nil, fmt.Errorf("config: key file %s must contain exactly 32 bytes, got %d", c.KeyFile, len(data))
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read key file: %w", err)
	}
	return nil, fmt.Errorf("config: key file %s does not exist; generate one with the admin CLI", c.KeyFile)
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
