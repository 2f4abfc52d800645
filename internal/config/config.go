package config

import (
    "errors"
    "fmt"
    "log"
    "os"
    "strings"

    "github.com/spf13/viper"
)

type Config struct {
    ServerPort          string `mapstructure:"SERVER_PORT"`
    DatabaseURL         string `mapstructure:"DATABASE_URL"`
    DBMaxConns          int32  `mapstructure:"DB_MAX_CONNS"`
    KioskAPIToken       string `mapstructure:"KIOSK_API_TOKEN"`
    BcryptCost          int    `mapstructure:"BCRYPT_COST"`
    RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
    ReturnEventExchange string `mapstructure:"RETURN_EVENT_EXCHANGE"`
    CORSAllowedOrigins  string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads settings from the environment and an optional .env file
// in path. DATABASE_URL may be replaced by the individual DB_* variables.
func LoadConfig(path string) (config Config, err error) {
    viper.AddConfigPath(path)
    viper.SetConfigName(".env")
    viper.SetConfigType("env")

    viper.AutomaticEnv()
    viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

    viper.SetDefault("SERVER_PORT", "8080")
    viper.SetDefault("DB_MAX_CONNS", 10)
    viper.SetDefault("BCRYPT_COST", 10)
    viper.SetDefault("RETURN_EVENT_EXCHANGE", "bottle_return.events")
    viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
    viper.SetDefault("DB_HOST", "localhost")
    viper.SetDefault("DB_PORT", "5432")
    viper.SetDefault("DB_SSLMODE", "disable")

    for _, key := range []string{
        "SERVER_PORT",
        "DATABASE_URL",
        "DB_MAX_CONNS",
        "KIOSK_API_TOKEN",
        "BCRYPT_COST",
        "RABBITMQ_URL",
        "RETURN_EVENT_EXCHANGE",
        "CORS_ALLOWED_ORIGINS",
        "DB_HOST",
        "DB_PORT",
        "DB_USER",
        "DB_PASSWORD",
        "DB_NAME",
        "DB_SSLMODE",
    } {
        _ = viper.BindEnv(key)
    }

    if err = viper.ReadInConfig(); err != nil {
        if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
            log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
        }
        err = nil
    }

    if err = viper.Unmarshal(&config); err != nil {
        return
    }

    if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
        config.ServerPort = port
    }

    config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
    if config.DatabaseURL == "" {
        config.DatabaseURL, err = databaseURLFromParts()
        if err != nil {
            return
        }
    }

    config.KioskAPIToken = strings.TrimSpace(config.KioskAPIToken)
    if config.KioskAPIToken == "" {
        err = errors.New("KIOSK_API_TOKEN is required")
        return
    }

    if config.BcryptCost < 4 || config.BcryptCost > 31 {
        log.Printf("level=warn component=config msg=\"bcrypt cost out of range; using default\" cost=%d", config.BcryptCost)
        config.BcryptCost = 10
    }
    if config.DBMaxConns <= 0 {
        config.DBMaxConns = 10
    }
    config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)

    return
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
    var out []string
    for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
        if origin = strings.TrimSpace(origin); origin != "" {
            out = append(out, origin)
        }
    }
    if len(out) == 0 {
        return []string{"*"}
    }
    return out
}

func databaseURLFromParts() (string, error) {
    user := strings.TrimSpace(viper.GetString("DB_USER"))
    password := strings.TrimSpace(viper.GetString("DB_PASSWORD"))
    name := strings.TrimSpace(viper.GetString("DB_NAME"))
    if user == "" || password == "" || name == "" {
        return "", errors.New("DATABASE_URL or DB_USER/DB_PASSWORD/DB_NAME are required")
    }
    return fmt.Sprintf(
        "host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
        strings.TrimSpace(viper.GetString("DB_HOST")),
        strings.TrimSpace(viper.GetString("DB_PORT")),
        user,
        password,
        name,
        strings.TrimSpace(viper.GetString("DB_SSLMODE")),
    ), nil
}
