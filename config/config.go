package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// Multicard payment gateway
	MULTICARD_BASE_URL       string
	MULTICARD_APPLICATION_ID string
	MULTICARD_SECRET         string
	MULTICARD_STORE_ID       string
	MULTICARD_CALLBACK_URL   string
	// Eskiz SMS gateway
	ESKIZ_BASE_URL string
	ESKIZ_EMAIL    string
	ESKIZ_PASSWORD string
	ESKIZ_FROM     string
	// HTTP
	ALLOWED_ORIGINS string
	CRON_ENABLED    string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	multicardBase := os.Getenv("MULTICARD_BASE_URL")
	if multicardBase == "" {
		multicardBase = "https://dev-mesh.multicard.uz"
	}

	eskizBase := os.Getenv("ESKIZ_BASE_URL")
	if eskizBase == "" {
		eskizBase = "https://notify.eskiz.uz/api"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// Multicard
		MULTICARD_BASE_URL:       multicardBase,
		MULTICARD_APPLICATION_ID: os.Getenv("MULTICARD_APPLICATION_ID"),
		MULTICARD_SECRET:         os.Getenv("MULTICARD_SECRET"),
		MULTICARD_STORE_ID:       os.Getenv("MULTICARD_STORE_ID"),
		MULTICARD_CALLBACK_URL:   os.Getenv("MULTICARD_CALLBACK_URL"),
		// Eskiz
		ESKIZ_BASE_URL: eskizBase,
		ESKIZ_EMAIL:    os.Getenv("ESKIZ_EMAIL"),
		ESKIZ_PASSWORD: os.Getenv("ESKIZ_PASSWORD"),
		ESKIZ_FROM:     os.Getenv("ESKIZ_FROM"),
		// HTTP
		ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
		CRON_ENABLED:    os.Getenv("CRON_ENABLED"),
	}

	return envVariables, nil
}
