package config

import (
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// DefaultPath is used when no config file is given on the command line.
const DefaultPath = "conf/heapcache.ini"

/*
[server]
bind_address = 127.0.0.1
port         = 8888

[storage]
data_file = ./heapcache_data/data.db
pool_size = 100

[log]
level = info
path  =
*/
type Cfg struct {
	Raw *ini.File

	BindAddress string
	Port        int

	DataFile string
	PoolSize int

	LogLevel string
	LogPath  string
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:         ini.Empty(),
		BindAddress: "127.0.0.1",
		Port:        8888,
		DataFile:    "./heapcache_data/data.db",
		PoolSize:    100,
		LogLevel:    "info",
	}
}

// Load reads configFile on top of the defaults. A missing file is not an
// error; a malformed file or an invalid value is.
func Load(configFile string) (*Cfg, error) {
	cfg := NewCfg()
	if configFile == "" {
		configFile = DefaultPath
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return cfg, nil
	}

	raw, err := ini.Load(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", configFile)
	}
	cfg.Raw = raw

	cfg.parseServerCfg(raw.Section("server"))
	cfg.parseStorageCfg(raw.Section("storage"))
	cfg.parseLogCfg(raw.Section("log"))

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", configFile)
	}
	return cfg, nil
}

func (cfg *Cfg) parseServerCfg(section *ini.Section) {
	cfg.BindAddress = section.Key("bind_address").MustString(cfg.BindAddress)
	cfg.Port = section.Key("port").MustInt(cfg.Port)
}

func (cfg *Cfg) parseStorageCfg(section *ini.Section) {
	cfg.DataFile = section.Key("data_file").MustString(cfg.DataFile)
	cfg.PoolSize = section.Key("pool_size").MustInt(cfg.PoolSize)
}

func (cfg *Cfg) parseLogCfg(section *ini.Section) {
	cfg.LogLevel = section.Key("level").MustString(cfg.LogLevel)
	cfg.LogPath = section.Key("path").String()
}

func (cfg *Cfg) validate() error {
	if cfg.PoolSize <= 0 {
		return errors.Errorf("storage.pool_size must be positive, got %d", cfg.PoolSize)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return errors.Errorf("server.port out of range: %d", cfg.Port)
	}
	if cfg.DataFile == "" {
		return errors.Errorf("storage.data_file is empty")
	}
	return nil
}

func (cfg *Cfg) Addr() string {
	return net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port))
}
