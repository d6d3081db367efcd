package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string

		Server   ServerConfig
		Database DatabaseConfig
		Password PasswordConfig
		Audit    AuditConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		DisableReqLogs     bool
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine          string // postgres | mysql | sqlite3
		Host            string
		Port            int
		Name            string
		User            string
		Password        string
		DisableTLS      bool
		Path            string // sqlite3 only
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	PasswordConfig struct {
		BcryptCost   int
		MinLength    int
		ResetTimeout time.Duration // lifetime of password reset links; whole days
	}

	AuditConfig struct {
		Schedule string // cron spec; empty disables the job
		Repair   bool
	}
)

// Address returns the "host:port" of the database server.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Eduva")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k3$9-e)duva+1t2=qz&vx8(h!m)#*a7(#lp0^$tbw5nsd")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Eduva <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "eduva")
	v.SetDefault("database.user", "eduva")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "eduva.db")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 30*time.Minute)

	v.SetDefault("password.bcryptCost", 10)
	v.SetDefault("password.minLength", 8)
	v.SetDefault("password.resetTimeout", 3*24*time.Hour)

	v.SetDefault("audit.schedule", "@daily")
	v.SetDefault("audit.repair", true)
}

// NewConfig loads the configuration of the environment named by $ENV.
func NewConfig() *Config {
	return LoadConfig(os.Getenv("ENV"))
}

// LoadConfig loads the configuration from defaults, an optional `config/.env.<env>` file
// and the environment (prefixed by the upper-cased env name, e.g. DEV_DATABASE_HOST).
func LoadConfig(env string) *Config {
	v := viper.New()
	setDefaults(v)

	env = strings.ToUpper(env) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "sqlite3")
		v.SetDefault("database.path", ":memory:")
		v.SetDefault("password.bcryptCost", 4)
		v.SetDefault("audit.schedule", "")
		v.SetDefault("server.disableReqLogs", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v, env)
}

func fromViper(v *viper.Viper, env string) *Config {
	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: *from,
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:          v.GetString("database.engine"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			Name:            v.GetString("database.name"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DisableTLS:      v.GetBool("database.disableTLS"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.maxOpenConns"),
			MaxIdleConns:    v.GetInt("database.maxIdleConns"),
			ConnMaxLifetime: v.GetDuration("database.connMaxLifetime"),
		},
		Password: PasswordConfig{
			BcryptCost:   v.GetInt("password.bcryptCost"),
			MinLength:    v.GetInt("password.minLength"),
			ResetTimeout: v.GetDuration("password.resetTimeout"),
		},
		Audit: AuditConfig{
			Schedule: v.GetString("audit.schedule"),
			Repair:   v.GetBool("audit.repair"),
		},
	}
}
