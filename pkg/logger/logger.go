package logger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Init configures the global zerolog logger: console output, short caller
// and the given level. Empty values fall back to leuko-api / INFO.
func Init(appName, logLevel string) {
	if len(appName) == 0 {
		appName = "leuko-api"
		log.Warn().Msg("App name not set, defaulting to 'leuko-api'")
	}
	if len(logLevel) == 0 {
		log.Warn().Msg("Log level not set, defaulting to INFO")
		logLevel = "INFO"
	}

	once.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(logLevel))
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "02-01-2006 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
			FieldsExclude: []string{"applicationName"},
		}).With().Timestamp().Caller().Str("applicationName", appName).Logger()

		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			parts := strings.Split(file, "/")
			return parts[len(parts)-1] + ":" + strconv.Itoa(line)
		}
		log.Info().Msg("Logger initialized!")
	})
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR/FATAL/PANIC/DISABLED to a zerolog
// level. Unknown values map to INFO.
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(logLevel)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	case "DISABLED":
		return zerolog.Disabled
	default:
		log.Warn().Msgf("Incorrect log level - %s, using INFO", logLevel)
		return zerolog.InfoLevel
	}
}
