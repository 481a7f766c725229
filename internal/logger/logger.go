package logger

import (
	"os"
	"strings"

	"course-enrollment-service/internal/config"

	"github.com/labstack/gommon/log"
)

const jsonHeader = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

func New(prefix string, cfg config.Log) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(os.Stdout)
	l.SetLevel(parseLevel(cfg.Level))
	if strings.EqualFold(cfg.Format, "json") {
		l.SetHeader(jsonHeader)
	}
	return l
}

func parseLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
