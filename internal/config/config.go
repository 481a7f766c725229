package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database `envPrefix:"DB_"`
	Auth        Auth     `envPrefix:"AUTH_"`

	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
}

type Razorpay struct {
	BaseApiURL    string        `env:"BASE_API_URL" envDefault:"https://api.razorpay.com"`
	KeyID         string        `env:"KEY_ID"`
	KeySecret     string        `env:"KEY_SECRET"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	Currency      string        `env:"CURRENCY" envDefault:"INR"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// Stub swaps the remote gateway for an in-process one (local development only).
	Stub bool `env:"STUB" envDefault:"false"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"` // sqlite | mysql
	DSN             string        `env:"DSN" envDefault:"enrollment.db"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"ISSUER"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (e Environment) IsProduction() bool {
	return e.Name == "production"
}
