package env

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Load reads the given env files (".env" when none are given) into the
// process environment. Variables already set are left untouched so that
// deploy-time values win over checked-in defaults.
func Load(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("file", f).Msg("env file not found, skipping")
			continue
		}
		log.Error().Err(err).Str("file", f).Msg("error loading env file")
	}
}
