package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		AdminIDs         []int64  `env:"ADMIN_IDS"`
		DefaultLanguage  string   `env:"LANG,default=ru"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,composer,moderation"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.sellvibe"`
		MetricsAddr      string   `env:"METRICS_ADDR"`
		Session          Session
	}

	Session struct {
		TTL           time.Duration `env:"SESSION_TTL,default=30m"`
		SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL,default=1m"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("SV_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
