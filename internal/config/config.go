package config

import (
	"fmt"
	"log"
	"os"
)

// Insecure defaults that must never survive into release mode
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"changeme":                             true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	GoPay          GoPayConfig
	Hestia         HestiaConfig
	Encryption     EncryptionConfig
	Shop           ShopConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// GoPayConfig holds payment gateway credentials and callback URLs
type GoPayConfig struct {
	APIURL       string
	GoID         string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	NotifyURL    string
}

// HestiaConfig holds control-panel API access
type HestiaConfig struct {
	APIURL    string
	Username  string
	AccessKey string
	PanelURL  string
	ServerIP  string
}

type EncryptionConfig struct {
	Key string
}

type ShopConfig struct {
	DefaultCurrency string
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "saas_user"),
			Password: getEnv("DB_PASSWORD", "saas_pass"),
			DBName:   getEnv("DB_NAME", "saas_db"),
			Schema:   getEnv("DB_SCHEMA", "shop"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		GoPay: GoPayConfig{
			APIURL:       getEnv("GOPAY_API_URL", "https://gw.sandbox.gopay.com/api"),
			GoID:         getEnv("GOPAY_GOID", ""),
			ClientID:     getEnv("GOPAY_CLIENT_ID", ""),
			ClientSecret: getEnv("GOPAY_CLIENT_SECRET", ""),
			ReturnURL:    getEnv("GOPAY_RETURN_URL", "http://localhost:8006/api/v1/payments/return"),
			NotifyURL:    getEnv("GOPAY_NOTIFY_URL", "http://localhost:8006/api/v1/payments/notify"),
		},
		Hestia: HestiaConfig{
			APIURL:    getEnv("HESTIA_API_URL", "https://localhost:8083/api/"),
			Username:  getEnv("HESTIA_USERNAME", "admin"),
			AccessKey: getEnv("HESTIA_ACCESS_KEY", ""),
			PanelURL:  getEnv("HESTIA_PANEL_URL", "https://panel.example.com:8083"),
			ServerIP:  getEnv("HESTIA_SERVER_IP", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Shop: ShopConfig{
			DefaultCurrency: getEnv("SHOP_CURRENCY", "CZK"),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
	}

	// Do not log credentials
	log.Printf("[config] Hosting Shop loaded: port=%s db=%s/%s.%s gopay=%s hestia=%s",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema,
		cfg.GoPay.APIURL, cfg.Hestia.APIURL)

	return cfg
}

// Validate rejects insecure or missing secrets
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	// 32 bytes hex for AES-256-GCM
	if len(c.Encryption.Key) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
	}

	if c.GoPay.ClientID == "" || c.GoPay.ClientSecret == "" || c.GoPay.GoID == "" {
		return fmt.Errorf("GOPAY_GOID, GOPAY_CLIENT_ID and GOPAY_CLIENT_SECRET must be set")
	}

	if c.Hestia.AccessKey == "" {
		return fmt.Errorf("HESTIA_ACCESS_KEY must be set")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
