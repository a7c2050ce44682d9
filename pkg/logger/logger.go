package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// Init initializes the structured logger with proper configuration
func Init(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	// Override with environment if not provided
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	// Set formatter based on environment
	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	log.SetOutput(os.Stdout)

	Logger = log

	return log
}

// Get returns the global logger instance
func Get() *logrus.Logger {
	if Logger == nil {
		return Init("info", false)
	}
	return Logger
}

// WithComponent creates a logger with component context
func WithComponent(component string) *logrus.Entry {
	return Get().WithField("component", component)
}

// WithProvider creates a logger with upstream provider context
func WithProvider(provider string) *logrus.Entry {
	return Get().WithField("provider", provider)
}

// WithSportContext creates a logger with sport and league context
func WithSportContext(sport, league string) *logrus.Entry {
	return Get().WithFields(logrus.Fields{
		"sport":  sport,
		"league": league,
	})
}

// WithRequestID creates a logger with request context for tracing
func WithRequestID(requestID string) *logrus.Entry {
	return Get().WithField("request_id", requestID)
}
