package config

import (
	"log"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	DatabasePath string `mapstructure:"database_path"`
	UploadsDir   string `mapstructure:"uploads_dir"`
	SiteName     string `mapstructure:"site_name"`
	PublicURL    string `mapstructure:"public_url"`
	Debug        bool   `mapstructure:"debug"`
}

var (
	loaded Config
	once   sync.Once
)

// Get reads quill.yaml (if present) merged with QUILL_* environment
// overrides. The first call wins; later calls return the same Config.
func Get() Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("listen_addr", ":6835")
		v.SetDefault("database_path", "quill.db")
		v.SetDefault("uploads_dir", "assets/uploads")
		v.SetDefault("site_name", "Quill")
		v.SetDefault("public_url", "http://localhost:6835")
		v.SetDefault("debug", false)

		v.SetConfigName("quill")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		v.SetEnvPrefix("QUILL")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				log.Fatalf("Failed to read config file: %v", err)
			}
		}

		if err := v.Unmarshal(&loaded); err != nil {
			log.Fatalf("Failed to unmarshal config: %v", err)
		}
	})

	return loaded
}
