package registry

import (
	"time"

	"github.com/partyhub-games/partyhub/internal/database"
)

type Config struct {
	// Logging verbosity
	Debug bool `envconfig:"PARTYHUB_DEBUG" default:"false"`

	// Number of drawings kept in the read cache
	CacheSize int `envconfig:"PARTYHUB_CACHE_SIZE" default:"1024"`

	// Port on which the health check is launched
	Port string `envconfig:"PARTYHUB_PORT" default:"1234"`

	// profile port
	ProfPort string `envconfig:"PARTYHUB_PROF_PORT" default:"8888"`

	// Length of generated join codes
	JoinCodeLength int `envconfig:"PARTYHUB_JOIN_CODE_LENGTH" default:"6"`

	// Pause between the last answer arriving and the quiz auto-advancing
	GraceDelay time.Duration `envconfig:"PARTYHUB_GRACE_DELAY" default:"3s"`

	// Pause after every team found the word before the next passage
	CelebrateDelay time.Duration `envconfig:"PARTYHUB_CELEBRATE_DELAY" default:"4s"`

	// Pause after a timed-out round's reveal before the next passage
	RevealDelay time.Duration `envconfig:"PARTYHUB_REVEAL_DELAY" default:"4s"`

	DB database.Config
}
