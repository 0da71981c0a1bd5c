package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
)

const publicSTUN = "stun:stun.l.google.com:19302"

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET,required"`

	CoturnServer CoturnConfig
	Turn         TurnConfig
	Postgres     PostgresConfig
	Stripe       StripeConfig
	Recordings   RecordingsConfig
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"mentorcall"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`

	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// CoturnConfig - TURN сервер необязателен, без него клиенты получают только STUN
type CoturnConfig struct {
	Host     string `env:"COTURN_HOST"`
	Username string `env:"COTURN_USERNAME"`
	Password string `env:"COTURN_PASSWORD"`

	// Secret - нужен для генерации временных кредов для фронта
	Secret string `env:"COTURN_SECRET"`
}

func (c CoturnConfig) Enabled() bool {
	return c.Host != ""
}

func (c CoturnConfig) UDPServer() webrtc.ICEServer {
	return webrtc.ICEServer{
		URLs:       []string{fmt.Sprintf("turn:%s?transport=udp", c.Host)},
		Username:   c.Username,
		Credential: c.Password,
	}
}

func (c CoturnConfig) TCPServer() webrtc.ICEServer {
	return webrtc.ICEServer{
		URLs:       []string{fmt.Sprintf("turn:%s?transport=tcp", c.Host)},
		Username:   c.Username,
		Credential: c.Password,
	}
}

// TurnConfig - встроенный TURN, включается непустым TURN_LISTEN
type TurnConfig struct {
	Listen   string `env:"TURN_LISTEN"`
	PublicIP string `env:"TURN_PUBLIC_IP" envDefault:"127.0.0.1"`
	Realm    string `env:"TURN_REALM" envDefault:"mentorcall"`
}

func (t TurnConfig) Enabled() bool {
	return t.Listen != ""
}

type StripeConfig struct {
	// SecretKey пустой - платежи идут через локальный шлюз
	SecretKey string `env:"STRIPE_SECRET_KEY"`
	Currency  string `env:"STRIPE_CURRENCY" envDefault:"usd"`
}

type RecordingsConfig struct {
	Dir      string `env:"RECORDINGS_DIR" envDefault:"./recordings"`
	MaxBytes int64  `env:"RECORDING_MAX_BYTES" envDefault:"536870912"`
}

// New читает .env (если он есть) и переменные окружения
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &c, nil
}

// ICEServers возвращает публичный STUN и, если настроен coturn, TURN по UDP и TCP
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{
		{URLs: []string{publicSTUN}},
	}

	if c.CoturnServer.Enabled() {
		servers = append(servers, c.CoturnServer.UDPServer(), c.CoturnServer.TCPServer())
	}

	return servers
}
