package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    string
	NatsURL         string
	JaegerEndpoint  string
	PaystackSecret  string
	PaystackBaseURL string
	Port            string

	// DonationMinimums maps currency code to the smallest accepted donation
	// in minor units, e.g. "NGN:100000,USD:200". Currencies absent from the
	// map have no floor.
	DonationMinimums map[string]int64
}

func Load() *Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	paystackBase := os.Getenv("PAYSTACK_BASE_URL")
	if paystackBase == "" {
		paystackBase = "https://api.paystack.co"
	}

	return &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		NatsURL:          os.Getenv("NATS_URL"),
		JaegerEndpoint:   os.Getenv("JAEGER_ENDPOINT"),
		PaystackSecret:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:  paystackBase,
		Port:             port,
		DonationMinimums: parseDonationMinimums(os.Getenv("DONATION_MINIMUMS")),
	}
}

func parseDonationMinimums(raw string) map[string]int64 {
	if raw == "" {
		return nil
	}
	minimums := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		currency, value, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found {
			continue
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || amount <= 0 {
			continue
		}
		minimums[strings.ToUpper(strings.TrimSpace(currency))] = amount
	}
	if len(minimums) == 0 {
		return nil
	}
	return minimums
}
